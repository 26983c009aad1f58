// Package gitcoretest provides a recording gitcore.Backend for tests.
package gitcoretest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/z8n24/codexmonitor-go/internal/gitcore"
)

// Call is one recorded handler invocation. Args hold the handler inputs
// after the workspace id, with optional values dereferenced (nil if absent).
type Call struct {
	Method      string
	WorkspaceID string
	Args        []any
}

// Recorder implements gitcore.Backend. Results are derived from the inputs
// so two paths through the dispatchers can be compared.
type Recorder struct {
	// Err, when set, is returned by every handler.
	Err error

	// Block, when set, makes every handler wait for it or ctx.
	Block chan struct{}

	mu    sync.Mutex
	calls []Call
}

var _ gitcore.Backend = (*Recorder)(nil)

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Last returns the most recent call.
func (r *Recorder) Last() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Call{}, false
	}
	return r.calls[len(r.calls)-1], true
}

func (r *Recorder) record(ctx context.Context, method, ws string, args ...any) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Method: method, WorkspaceID: ws, Args: args})
	r.mu.Unlock()
	if r.Block != nil {
		select {
		case <-r.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.Err
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func (r *Recorder) GetGitStatus(ctx context.Context, ws string) (json.RawMessage, error) {
	if err := r.record(ctx, "get_git_status", ws); err != nil {
		return nil, err
	}
	return json.Marshal(gitcore.GitStatus{
		BranchName:     "main",
		Files:          []gitcore.GitFileStatus{{Path: "README.md", Status: "M", Additions: 2, Deletions: 1}},
		StagedFiles:    []gitcore.GitFileStatus{},
		UnstagedFiles:  []gitcore.GitFileStatus{{Path: "README.md", Status: "M", Additions: 2, Deletions: 1}},
		TotalAdditions: 2,
		TotalDeletions: 1,
	})
}

func (r *Recorder) InitGitRepo(ctx context.Context, ws, branch string, force bool) (json.RawMessage, error) {
	if err := r.record(ctx, "init_git_repo", ws, branch, force); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"status": "initialized", "branch": branch, "force": force})
}

func (r *Recorder) CreateGitHubRepo(ctx context.Context, ws, repo, visibility string, branch *string) (json.RawMessage, error) {
	if err := r.record(ctx, "create_github_repo", ws, repo, visibility, deref(branch)); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"status": "created", "repo": repo, "branch": deref(branch)})
}

func (r *Recorder) StageGitFile(ctx context.Context, ws, path string) error {
	return r.record(ctx, "stage_git_file", ws, path)
}

func (r *Recorder) StageGitAll(ctx context.Context, ws string) error {
	return r.record(ctx, "stage_git_all", ws)
}

func (r *Recorder) UnstageGitFile(ctx context.Context, ws, path string) error {
	return r.record(ctx, "unstage_git_file", ws, path)
}

func (r *Recorder) RevertGitFile(ctx context.Context, ws, path string) error {
	return r.record(ctx, "revert_git_file", ws, path)
}

func (r *Recorder) RevertGitAll(ctx context.Context, ws string) error {
	return r.record(ctx, "revert_git_all", ws)
}

func (r *Recorder) CommitGit(ctx context.Context, ws, message string) error {
	return r.record(ctx, "commit_git", ws, message)
}

func (r *Recorder) PushGit(ctx context.Context, ws string) error {
	return r.record(ctx, "push_git", ws)
}

func (r *Recorder) PullGit(ctx context.Context, ws string) error {
	return r.record(ctx, "pull_git", ws)
}

func (r *Recorder) FetchGit(ctx context.Context, ws string) error {
	return r.record(ctx, "fetch_git", ws)
}

func (r *Recorder) SyncGit(ctx context.Context, ws string) error {
	return r.record(ctx, "sync_git", ws)
}

func (r *Recorder) ListGitRoots(ctx context.Context, ws string, depth *int) ([]string, error) {
	if err := r.record(ctx, "list_git_roots", ws, deref(depth)); err != nil {
		return nil, err
	}
	d := gitcore.DefaultRootsDepth
	if depth != nil {
		d = *depth
	}
	return []string{".", fmt.Sprintf("depth-%d", d)}, nil
}

func (r *Recorder) GetGitDiffs(ctx context.Context, ws string) ([]gitcore.GitFileDiff, error) {
	if err := r.record(ctx, "get_git_diffs", ws); err != nil {
		return nil, err
	}
	return []gitcore.GitFileDiff{{Path: "README.md", Diff: "@@ -1 +1 @@\n-old\n+new\n"}}, nil
}

func (r *Recorder) GetGitLog(ctx context.Context, ws string, limit *int) (gitcore.GitLogResponse, error) {
	if err := r.record(ctx, "get_git_log", ws, deref(limit)); err != nil {
		return gitcore.GitLogResponse{}, err
	}
	n := gitcore.DefaultLogLimit
	if limit != nil {
		n = *limit
	}
	upstream := "origin/main"
	return gitcore.GitLogResponse{
		Total:         n,
		Entries:       []gitcore.GitLogEntry{{Sha: "abc123", Summary: "Initial commit", Author: "dev", Timestamp: 1700000000}},
		AheadEntries:  []gitcore.GitLogEntry{},
		BehindEntries: []gitcore.GitLogEntry{},
		Upstream:      &upstream,
	}, nil
}

func (r *Recorder) GetGitCommitDiff(ctx context.Context, ws, sha string) ([]gitcore.GitCommitDiff, error) {
	if err := r.record(ctx, "get_git_commit_diff", ws, sha); err != nil {
		return nil, err
	}
	return []gitcore.GitCommitDiff{{Path: "main.go", Status: "M", Diff: "diff for " + sha}}, nil
}

// GetGitRemote returns nil for the workspace id "no-remote".
func (r *Recorder) GetGitRemote(ctx context.Context, ws string) (*string, error) {
	if err := r.record(ctx, "get_git_remote", ws); err != nil {
		return nil, err
	}
	if ws == "no-remote" {
		return nil, nil
	}
	url := "git@github.com:acme/" + ws + ".git"
	return &url, nil
}

func (r *Recorder) GetGitHubIssues(ctx context.Context, ws string) (gitcore.GitHubIssuesResponse, error) {
	if err := r.record(ctx, "get_github_issues", ws); err != nil {
		return gitcore.GitHubIssuesResponse{}, err
	}
	return gitcore.GitHubIssuesResponse{
		Total:  1,
		Issues: []gitcore.GitHubIssue{{Number: 7, Title: "Crash on start", URL: "https://github.com/acme/app/issues/7"}},
	}, nil
}

func (r *Recorder) GetGitHubPullRequests(ctx context.Context, ws string) (gitcore.GitHubPullRequestsResponse, error) {
	if err := r.record(ctx, "get_github_pull_requests", ws); err != nil {
		return gitcore.GitHubPullRequestsResponse{}, err
	}
	return gitcore.GitHubPullRequestsResponse{
		Total: 1,
		PullRequests: []gitcore.GitHubPullRequest{{
			Number:      12,
			Title:       "Add feature",
			HeadRefName: "feature",
			BaseRefName: "main",
			Author:      &gitcore.GitHubUser{Login: "octocat"},
		}},
	}, nil
}

func (r *Recorder) GetGitHubPullRequestDiff(ctx context.Context, ws string, pr uint64) ([]gitcore.GitHubPullRequestDiff, error) {
	if err := r.record(ctx, "get_github_pull_request_diff", ws, pr); err != nil {
		return nil, err
	}
	return []gitcore.GitHubPullRequestDiff{{Path: fmt.Sprintf("pr-%d.go", pr), Status: "A", Diff: "+package main\n"}}, nil
}

func (r *Recorder) GetGitHubPullRequestComments(ctx context.Context, ws string, pr uint64) ([]gitcore.GitHubPullRequestComment, error) {
	if err := r.record(ctx, "get_github_pull_request_comments", ws, pr); err != nil {
		return nil, err
	}
	return []gitcore.GitHubPullRequestComment{{ID: pr * 100, Body: "LGTM", Author: &gitcore.GitHubUser{Login: "reviewer"}}}, nil
}

func (r *Recorder) CheckoutGitHubPullRequest(ctx context.Context, ws string, pr uint64) error {
	return r.record(ctx, "checkout_github_pull_request", ws, pr)
}

func (r *Recorder) ListGitBranches(ctx context.Context, ws string) (json.RawMessage, error) {
	if err := r.record(ctx, "list_git_branches", ws); err != nil {
		return nil, err
	}
	return json.Marshal(gitcore.GitBranchList{
		Current:  "main",
		Branches: []gitcore.GitBranch{{Name: "main", LastCommit: 1700000000}},
	})
}

func (r *Recorder) CheckoutGitBranch(ctx context.Context, ws, name string) error {
	return r.record(ctx, "checkout_git_branch", ws, name)
}

func (r *Recorder) CreateGitBranch(ctx context.Context, ws, name string) error {
	return r.record(ctx, "create_git_branch", ws, name)
}

func (r *Recorder) GenerateCommitMessage(ctx context.Context, ws string, modelID *string) (string, error) {
	if err := r.record(ctx, "generate_commit_message", ws, deref(modelID)); err != nil {
		return "", err
	}
	if modelID != nil {
		return "Update README.md (" + *modelID + ")", nil
	}
	return "Update README.md", nil
}
