// Package gitcore holds the git and GitHub operations behind the command
// catalog. Both the in-process command layer and the daemon call into a
// Backend; neither knows how the work is done.
package gitcore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrWorkspaceNotFound is returned when a workspace id is not registered.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Backend is one handler per catalog entry. Optional inputs are pointers and
// the implementation applies its own defaults.
type Backend interface {
	GetGitStatus(ctx context.Context, workspaceID string) (json.RawMessage, error)
	InitGitRepo(ctx context.Context, workspaceID, branch string, force bool) (json.RawMessage, error)
	CreateGitHubRepo(ctx context.Context, workspaceID, repo, visibility string, branch *string) (json.RawMessage, error)
	StageGitFile(ctx context.Context, workspaceID, path string) error
	StageGitAll(ctx context.Context, workspaceID string) error
	UnstageGitFile(ctx context.Context, workspaceID, path string) error
	RevertGitFile(ctx context.Context, workspaceID, path string) error
	RevertGitAll(ctx context.Context, workspaceID string) error
	CommitGit(ctx context.Context, workspaceID, message string) error
	PushGit(ctx context.Context, workspaceID string) error
	PullGit(ctx context.Context, workspaceID string) error
	FetchGit(ctx context.Context, workspaceID string) error
	SyncGit(ctx context.Context, workspaceID string) error
	ListGitRoots(ctx context.Context, workspaceID string, depth *int) ([]string, error)
	GetGitDiffs(ctx context.Context, workspaceID string) ([]GitFileDiff, error)
	GetGitLog(ctx context.Context, workspaceID string, limit *int) (GitLogResponse, error)
	GetGitCommitDiff(ctx context.Context, workspaceID, sha string) ([]GitCommitDiff, error)
	GetGitRemote(ctx context.Context, workspaceID string) (*string, error)
	GetGitHubIssues(ctx context.Context, workspaceID string) (GitHubIssuesResponse, error)
	GetGitHubPullRequests(ctx context.Context, workspaceID string) (GitHubPullRequestsResponse, error)
	GetGitHubPullRequestDiff(ctx context.Context, workspaceID string, prNumber uint64) ([]GitHubPullRequestDiff, error)
	GetGitHubPullRequestComments(ctx context.Context, workspaceID string, prNumber uint64) ([]GitHubPullRequestComment, error)
	CheckoutGitHubPullRequest(ctx context.Context, workspaceID string, prNumber uint64) error
	ListGitBranches(ctx context.Context, workspaceID string) (json.RawMessage, error)
	CheckoutGitBranch(ctx context.Context, workspaceID, name string) error
	CreateGitBranch(ctx context.Context, workspaceID, name string) error
	GenerateCommitMessage(ctx context.Context, workspaceID string, modelID *string) (string, error)
}

// Workspaces resolves a workspace id to its directory.
type Workspaces interface {
	Path(ctx context.Context, workspaceID string) (string, error)
}

// Handler defaults applied when the caller leaves the option unset.
const (
	DefaultRootsDepth = 2
	DefaultLogLimit   = 40
)

// Defaults overrides the handler defaults. Zero fields keep the built-in value.
type Defaults struct {
	LogLimit   int
	RootsDepth int
}
