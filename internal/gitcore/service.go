package gitcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Service implements Backend on top of the git and gh executables.
type Service struct {
	workspaces Workspaces
	codexHome  string
	defaults   Defaults

	locks sync.Map // workspace id -> *sync.Mutex
}

var _ Backend = (*Service)(nil)

// NewService creates a Service. codexHome may be empty.
func NewService(workspaces Workspaces, codexHome string) *Service {
	return &Service{
		workspaces: workspaces,
		codexHome:  codexHome,
		defaults:   Defaults{LogLimit: DefaultLogLimit, RootsDepth: DefaultRootsDepth},
	}
}

// SetDefaults changes the log limit and roots depth used when a call omits them.
func (s *Service) SetDefaults(d Defaults) {
	if d.LogLimit > 0 {
		s.defaults.LogLimit = d.LogLimit
	}
	if d.RootsDepth > 0 {
		s.defaults.RootsDepth = d.RootsDepth
	}
}

// repo resolves the workspace directory.
func (s *Service) repo(ctx context.Context, workspaceID string) (string, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return "", errors.New("workspaceId is required")
	}
	dir, err := s.workspaces.Path(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// lock serializes mutating operations per workspace.
func (s *Service) lock(workspaceID string) func() {
	v, _ := s.locks.LoadOrStore(workspaceID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// mutate resolves the workspace and runs fn under the workspace lock.
func (s *Service) mutate(ctx context.Context, workspaceID string, fn func(dir string) error) error {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return err
	}
	unlock := s.lock(workspaceID)
	defer unlock()
	return fn(dir)
}

func (s *Service) GetGitStatus(ctx context.Context, workspaceID string) (json.RawMessage, error) {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out, err := git(ctx, dir, "status", "--porcelain=v1", "--branch", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	status := parseStatus(out)

	unstagedStats := numstat(ctx, dir, "diff", "--numstat")
	stagedStats := numstat(ctx, dir, "diff", "--cached", "--numstat")
	for i := range status.StagedFiles {
		f := &status.StagedFiles[i]
		f.Additions, f.Deletions = stagedStats[f.Path][0], stagedStats[f.Path][1]
	}
	for i := range status.UnstagedFiles {
		f := &status.UnstagedFiles[i]
		f.Additions, f.Deletions = unstagedStats[f.Path][0], unstagedStats[f.Path][1]
	}
	for i := range status.Files {
		f := &status.Files[i]
		f.Additions = stagedStats[f.Path][0] + unstagedStats[f.Path][0]
		f.Deletions = stagedStats[f.Path][1] + unstagedStats[f.Path][1]
		status.TotalAdditions += f.Additions
		status.TotalDeletions += f.Deletions
	}
	return json.Marshal(status)
}

// parseStatus reads `git status --porcelain=v1 --branch` output.
func parseStatus(out string) GitStatus {
	status := GitStatus{
		Files:         []GitFileStatus{},
		StagedFiles:   []GitFileStatus{},
		UnstagedFiles: []GitFileStatus{},
	}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "## ") {
			status.BranchName = parseBranchHeader(strings.TrimPrefix(line, "## "))
			continue
		}
		if len(line) < 4 {
			continue
		}
		x, y, path := line[0], line[1], line[3:]
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		path = strings.Trim(path, `"`)

		if x == '?' && y == '?' {
			entry := GitFileStatus{Path: path, Status: "A"}
			status.Files = append(status.Files, entry)
			status.UnstagedFiles = append(status.UnstagedFiles, entry)
			continue
		}
		combined := y
		if x != ' ' {
			combined = x
			status.StagedFiles = append(status.StagedFiles, GitFileStatus{Path: path, Status: string(x)})
		}
		if y != ' ' {
			status.UnstagedFiles = append(status.UnstagedFiles, GitFileStatus{Path: path, Status: string(y)})
		}
		status.Files = append(status.Files, GitFileStatus{Path: path, Status: string(combined)})
	}
	return status
}

func parseBranchHeader(header string) string {
	if rest, ok := strings.CutPrefix(header, "No commits yet on "); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(header, "Initial commit on "); ok {
		return rest
	}
	if strings.HasPrefix(header, "HEAD (no branch)") {
		return "HEAD"
	}
	name, _, _ := strings.Cut(header, "...")
	name, _, _ = strings.Cut(name, " ")
	return name
}

// numstat maps path -> [additions, deletions]. Failures yield an empty map;
// counts are decoration on top of status.
func numstat(ctx context.Context, dir string, args ...string) map[string][2]int {
	out, err := git(ctx, dir, args...)
	if err != nil {
		return make(map[string][2]int)
	}
	return parseNumstat(out)
}

func parseNumstat(out string) map[string][2]int {
	stats := make(map[string][2]int)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		add, _ := strconv.Atoi(fields[0])
		del, _ := strconv.Atoi(fields[1])
		stats[renamedPath(fields[2])] = [2]int{add, del}
	}
	return stats
}

// renamedPath returns the destination of a numstat rename, which git writes
// either as "old => new" or in the compact "dir/{old => new}/file" form.
func renamedPath(p string) string {
	open := strings.IndexByte(p, '{')
	arrow := strings.Index(p, " => ")
	if arrow < 0 {
		return p
	}
	if open >= 0 && open < arrow {
		if end := strings.IndexByte(p[arrow:], '}'); end >= 0 {
			end += arrow
			joined := p[:open] + p[arrow+4:end] + p[end+1:]
			return strings.ReplaceAll(joined, "//", "/")
		}
	}
	return p[arrow+4:]
}

func (s *Service) InitGitRepo(ctx context.Context, workspaceID, branch string, force bool) (json.RawMessage, error) {
	if err := validateRef("branch", branch); err != nil {
		return nil, err
	}
	var result map[string]any
	err := s.mutate(ctx, workspaceID, func(dir string) error {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return errors.New("git repository already exists")
		}
		if !force {
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("reading workspace: %w", err)
			}
			count := 0
			for _, e := range entries {
				if e.Name() != ".DS_Store" {
					count++
				}
			}
			if count > 0 {
				result = map[string]any{"status": "needs_confirmation", "entryCount": count}
				return nil
			}
		}
		if _, err := git(ctx, dir, "init", "--initial-branch="+strings.TrimSpace(branch)); err != nil {
			return err
		}
		result = map[string]any{"status": "initialized", "branch": strings.TrimSpace(branch)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (s *Service) StageGitFile(ctx context.Context, workspaceID, path string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("path is required")
		}
		_, err := git(ctx, dir, "add", "-A", "--", path)
		return err
	})
}

func (s *Service) StageGitAll(ctx context.Context, workspaceID string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		_, err := git(ctx, dir, "add", "-A")
		return err
	})
}

func (s *Service) UnstageGitFile(ctx context.Context, workspaceID, path string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("path is required")
		}
		if !hasHead(ctx, dir) {
			_, err := git(ctx, dir, "rm", "--cached", "-q", "--", path)
			return err
		}
		_, err := git(ctx, dir, "restore", "--staged", "--", path)
		return err
	})
}

func (s *Service) RevertGitFile(ctx context.Context, workspaceID, path string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("path is required")
		}
		if _, err := git(ctx, dir, "ls-files", "--error-unmatch", "--", path); err != nil {
			_, err := git(ctx, dir, "clean", "-f", "--", path)
			return err
		}
		_, err := git(ctx, dir, "restore", "--source=HEAD", "--staged", "--worktree", "--", path)
		return err
	})
}

func (s *Service) RevertGitAll(ctx context.Context, workspaceID string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		if hasHead(ctx, dir) {
			if _, err := git(ctx, dir, "restore", "--source=HEAD", "--staged", "--worktree", "--", "."); err != nil {
				return err
			}
		}
		_, err := git(ctx, dir, "clean", "-fd")
		return err
	})
}

func (s *Service) CommitGit(ctx context.Context, workspaceID, message string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		if strings.TrimSpace(message) == "" {
			return errors.New("commit message is required")
		}
		_, err := git(ctx, dir, "commit", "-m", message)
		return err
	})
}

func (s *Service) PushGit(ctx context.Context, workspaceID string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		return push(ctx, dir)
	})
}

func push(ctx context.Context, dir string) error {
	if _, err := git(ctx, dir, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}"); err != nil {
		_, err := git(ctx, dir, "push", "-u", "origin", "HEAD")
		return err
	}
	_, err := git(ctx, dir, "push")
	return err
}

func (s *Service) PullGit(ctx context.Context, workspaceID string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		_, err := git(ctx, dir, "pull")
		return err
	})
}

func (s *Service) FetchGit(ctx context.Context, workspaceID string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		_, err := git(ctx, dir, "fetch", "--prune")
		return err
	})
}

func (s *Service) SyncGit(ctx context.Context, workspaceID string) error {
	return s.mutate(ctx, workspaceID, func(dir string) error {
		if _, err := git(ctx, dir, "pull"); err != nil {
			return err
		}
		return push(ctx, dir)
	})
}

var skipRootDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

func (s *Service) ListGitRoots(ctx context.Context, workspaceID string, depth *int) ([]string, error) {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	maxDepth := s.defaults.RootsDepth
	if depth != nil {
		maxDepth = *depth
	}

	roots := []string{}
	var walk func(path string, level int)
	walk = func(path string, level int) {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
			rel, _ := filepath.Rel(dir, path)
			roots = append(roots, filepath.ToSlash(rel))
			return
		}
		if level >= maxDepth {
			return
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return
		}
		for _, e := range entries {
			name := e.Name()
			if !e.IsDir() || strings.HasPrefix(name, ".") || skipRootDirs[name] {
				continue
			}
			walk(filepath.Join(path, name), level+1)
		}
	}
	walk(dir, 0)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(roots)
	return roots, nil
}

func (s *Service) GetGitDiffs(ctx context.Context, workspaceID string) ([]GitFileDiff, error) {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out, err := git(ctx, dir, "status", "--porcelain=v1", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	status := parseStatus(out)
	head := hasHead(ctx, dir)

	diffs := make([]GitFileDiff, 0, len(status.Files))
	for _, f := range status.Files {
		var diff string
		switch {
		case isUntracked(status, f.Path):
			diff, err = run(ctx, dir, "git", []string{"diff", "--no-color", "--no-index", "--", os.DevNull, f.Path}, 1)
		case head:
			diff, err = git(ctx, dir, "diff", "--no-color", "HEAD", "--", f.Path)
		default:
			diff, err = git(ctx, dir, "diff", "--no-color", "--cached", "--", f.Path)
		}
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, GitFileDiff{
			Path:     f.Path,
			Diff:     diff,
			IsBinary: strings.Contains(diff, "Binary files "),
		})
	}
	return diffs, nil
}

func isUntracked(status GitStatus, path string) bool {
	for _, f := range status.StagedFiles {
		if f.Path == path {
			return false
		}
	}
	for _, f := range status.UnstagedFiles {
		if f.Path == path && f.Status == "A" {
			return true
		}
	}
	return false
}

func hasHead(ctx context.Context, dir string) bool {
	_, err := git(ctx, dir, "rev-parse", "--verify", "-q", "HEAD")
	return err == nil
}

const logFormat = "--pretty=format:%H%x1f%s%x1f%an%x1f%ct"

func (s *Service) GetGitLog(ctx context.Context, workspaceID string, limit *int) (GitLogResponse, error) {
	resp := GitLogResponse{
		Entries:       []GitLogEntry{},
		AheadEntries:  []GitLogEntry{},
		BehindEntries: []GitLogEntry{},
	}
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return resp, err
	}
	if !hasHead(ctx, dir) {
		return resp, nil
	}
	n := s.defaults.LogLimit
	if limit != nil && *limit > 0 {
		n = *limit
	}
	countArg := "-n" + strconv.Itoa(n)

	out, err := git(ctx, dir, "log", countArg, logFormat)
	if err != nil {
		return resp, err
	}
	resp.Entries = parseLog(out)

	if out, err := git(ctx, dir, "rev-list", "--count", "HEAD"); err == nil {
		resp.Total, _ = strconv.Atoi(strings.TrimSpace(out))
	}

	upstreamOut, err := git(ctx, dir, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		return resp, nil
	}
	upstream := strings.TrimSpace(upstreamOut)
	resp.Upstream = &upstream

	if out, err := git(ctx, dir, "rev-list", "--left-right", "--count", "HEAD...@{u}"); err == nil {
		fields := strings.Fields(out)
		if len(fields) == 2 {
			resp.Ahead, _ = strconv.Atoi(fields[0])
			resp.Behind, _ = strconv.Atoi(fields[1])
		}
	}
	if resp.Ahead > 0 {
		if out, err := git(ctx, dir, "log", countArg, logFormat, "@{u}..HEAD"); err == nil {
			resp.AheadEntries = parseLog(out)
		}
	}
	if resp.Behind > 0 {
		if out, err := git(ctx, dir, "log", countArg, logFormat, "HEAD..@{u}"); err == nil {
			resp.BehindEntries = parseLog(out)
		}
	}
	return resp, nil
}

func parseLog(out string) []GitLogEntry {
	entries := []GitLogEntry{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		ts, _ := strconv.ParseInt(fields[3], 10, 64)
		entries = append(entries, GitLogEntry{
			Sha:       fields[0],
			Summary:   fields[1],
			Author:    fields[2],
			Timestamp: ts,
		})
	}
	return entries
}

func (s *Service) GetGitCommitDiff(ctx context.Context, workspaceID, sha string) ([]GitCommitDiff, error) {
	if err := validateRef("sha", sha); err != nil {
		return nil, err
	}
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out, err := git(ctx, dir, "show", "--no-color", "--format=", "--name-status", sha)
	if err != nil {
		return nil, err
	}
	diffs := []GitCommitDiff{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		status, path := fields[0][:1], fields[len(fields)-1]
		diff, err := git(ctx, dir, "show", "--no-color", "--format=", sha, "--", path)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, GitCommitDiff{Path: path, Status: status, Diff: diff})
	}
	return diffs, nil
}

func (s *Service) GetGitRemote(ctx context.Context, workspaceID string) (*string, error) {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if out, err := git(ctx, dir, "remote", "get-url", "origin"); err == nil {
		url := strings.TrimSpace(out)
		return &url, nil
	}
	out, err := git(ctx, dir, "remote")
	if err != nil {
		return nil, err
	}
	names := strings.Fields(out)
	if len(names) == 0 {
		return nil, nil
	}
	out, err = git(ctx, dir, "remote", "get-url", names[0])
	if err != nil {
		return nil, err
	}
	url := strings.TrimSpace(out)
	return &url, nil
}

func (s *Service) ListGitBranches(ctx context.Context, workspaceID string) (json.RawMessage, error) {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out, err := git(ctx, dir, "for-each-ref", "--sort=-committerdate",
		"--format=%(refname:short)%1f%(committerdate:unix)", "refs/heads")
	if err != nil {
		return nil, err
	}
	list := GitBranchList{Branches: []GitBranch{}}
	for _, line := range strings.Split(out, "\n") {
		name, ts, ok := strings.Cut(line, "\x1f")
		if !ok {
			continue
		}
		last, _ := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
		list.Branches = append(list.Branches, GitBranch{Name: name, LastCommit: last})
	}
	if cur, err := git(ctx, dir, "branch", "--show-current"); err == nil {
		list.Current = strings.TrimSpace(cur)
	}
	return json.Marshal(list)
}

func (s *Service) CheckoutGitBranch(ctx context.Context, workspaceID, name string) error {
	if err := validateRef("branch name", name); err != nil {
		return err
	}
	return s.mutate(ctx, workspaceID, func(dir string) error {
		_, err := git(ctx, dir, "checkout", name)
		return err
	})
}

func (s *Service) CreateGitBranch(ctx context.Context, workspaceID, name string) error {
	if err := validateRef("branch name", name); err != nil {
		return err
	}
	return s.mutate(ctx, workspaceID, func(dir string) error {
		if _, err := git(ctx, dir, "check-ref-format", "--branch", name); err != nil {
			return fmt.Errorf("invalid branch name: %s", name)
		}
		_, err := git(ctx, dir, "checkout", "-b", name)
		if err == nil {
			log.Debug().Str("workspaceId", workspaceID).Str("branch", name).Msg("Created branch")
		}
		return err
	})
}
