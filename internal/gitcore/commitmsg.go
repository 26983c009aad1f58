package gitcore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// commitTemplateFile lives under CODEX_HOME. Its first non-empty line is used
// as a subject prefix, e.g. "chore: ".
const commitTemplateFile = "prompts/commit-message.md"

type changedFile struct {
	path      string
	status    string
	additions int
	deletions int
}

// GenerateCommitMessage summarizes the staged changes, or the working tree
// when nothing is staged. modelID selects a model on hosts that have one;
// the local summarizer only records it.
func (s *Service) GenerateCommitMessage(ctx context.Context, workspaceID string, modelID *string) (string, error) {
	dir, err := s.repo(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	if modelID != nil {
		log.Debug().Str("workspaceId", workspaceID).Str("model", *modelID).Msg("Commit message model requested")
	}

	files, err := changedFiles(ctx, dir, true)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		if files, err = changedFiles(ctx, dir, false); err != nil {
			return "", err
		}
		untracked, err := untrackedFiles(ctx, dir)
		if err != nil {
			return "", err
		}
		files = append(files, untracked...)
	}
	if len(files) == 0 {
		return "", errors.New("no changes to describe")
	}
	return s.templatePrefix() + summarize(files), nil
}

func changedFiles(ctx context.Context, dir string, staged bool) ([]changedFile, error) {
	statusArgs := []string{"diff", "--name-status"}
	statArgs := []string{"diff", "--numstat"}
	if staged {
		statusArgs = append(statusArgs, "--cached")
		statArgs = append(statArgs, "--cached")
	}
	out, err := git(ctx, dir, statusArgs...)
	if err != nil {
		return nil, err
	}
	stats := numstat(ctx, dir, statArgs...)

	var files []changedFile
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		p := fields[len(fields)-1]
		files = append(files, changedFile{
			path:      p,
			status:    fields[0][:1],
			additions: stats[p][0],
			deletions: stats[p][1],
		})
	}
	return files, nil
}

// untrackedFiles lists new files git does not know yet, counting every line
// as an addition.
func untrackedFiles(ctx context.Context, dir string) ([]changedFile, error) {
	out, err := git(ctx, dir, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	var files []changedFile
	for _, p := range strings.Split(out, "\n") {
		if p == "" {
			continue
		}
		f := changedFile{path: p, status: "A"}
		if data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p))); err == nil {
			f.additions = countLines(data)
		}
		files = append(files, f)
	}
	return files, nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

func summarize(files []changedFile) string {
	var b strings.Builder
	if len(files) == 1 {
		f := files[0]
		fmt.Fprintf(&b, "%s %s", verb(f.status), f.path)
		return b.String()
	}

	verbs := map[string]bool{}
	for _, f := range files {
		verbs[verb(f.status)] = true
	}
	v := "Update"
	if len(verbs) == 1 {
		for only := range verbs {
			v = only
		}
	}
	if scope := commonDir(files); scope != "" {
		fmt.Fprintf(&b, "%s %d files in %s", v, len(files), scope)
	} else {
		fmt.Fprintf(&b, "%s %d files", v, len(files))
	}
	b.WriteString("\n\n")
	for _, f := range files {
		fmt.Fprintf(&b, "- %s %s (+%d -%d)\n", verb(f.status), f.path, f.additions, f.deletions)
	}
	return strings.TrimRight(b.String(), "\n")
}

func verb(status string) string {
	switch status {
	case "A":
		return "Add"
	case "D":
		return "Remove"
	case "R":
		return "Rename"
	default:
		return "Update"
	}
}

func commonDir(files []changedFile) string {
	prefix := path.Dir(files[0].path)
	for _, f := range files[1:] {
		for prefix != "." && !strings.HasPrefix(f.path, prefix+"/") {
			prefix = path.Dir(prefix)
		}
	}
	if prefix == "." || prefix == "/" {
		return ""
	}
	return prefix
}

func (s *Service) templatePrefix() string {
	if s.codexHome == "" {
		return ""
	}
	f, err := os.Open(filepath.Join(s.codexHome, commitTemplateFile))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line + " "
		}
	}
	return ""
}
