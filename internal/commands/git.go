package commands

import (
	"context"
	"encoding/json"

	"github.com/z8n24/codexmonitor-go/internal/gateway/protocol"
	"github.com/z8n24/codexmonitor-go/internal/gitcore"
)

func (c *Commands) GetGitStatus(ctx context.Context, workspaceID string) (json.RawMessage, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[json.RawMessage](ctx, c, protocol.MethodGetGitStatus,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.GetGitStatus(ctx, workspaceID)
}

// InitGitRepo initializes a repository. A nil force is sent as absent and
// executes locally as false.
func (c *Commands) InitGitRepo(ctx context.Context, workspaceID, branch string, force *bool) (json.RawMessage, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[json.RawMessage](ctx, c, protocol.MethodInitGitRepo, protocol.InitGitRepoRequest{
			WorkspaceID: workspaceID,
			Branch:      branch,
			Force:       force,
		})
	}
	return c.local.InitGitRepo(ctx, workspaceID, branch, force != nil && *force)
}

func (c *Commands) CreateGitHubRepo(ctx context.Context, workspaceID, repo, visibility string, branch *string) (json.RawMessage, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[json.RawMessage](ctx, c, protocol.MethodCreateGitHubRepo, protocol.CreateGitHubRepoRequest{
			WorkspaceID: workspaceID,
			Repo:        repo,
			Visibility:  visibility,
			Branch:      branch,
		})
	}
	return c.local.CreateGitHubRepo(ctx, workspaceID, repo, visibility, branch)
}

func (c *Commands) StageGitFile(ctx context.Context, workspaceID, path string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodStageGitFile,
			protocol.WorkspacePathRequest{WorkspaceID: workspaceID, Path: path})
	}
	return c.local.StageGitFile(ctx, workspaceID, path)
}

func (c *Commands) StageGitAll(ctx context.Context, workspaceID string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodStageGitAll,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.StageGitAll(ctx, workspaceID)
}

func (c *Commands) UnstageGitFile(ctx context.Context, workspaceID, path string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodUnstageGitFile,
			protocol.WorkspacePathRequest{WorkspaceID: workspaceID, Path: path})
	}
	return c.local.UnstageGitFile(ctx, workspaceID, path)
}

func (c *Commands) RevertGitFile(ctx context.Context, workspaceID, path string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodRevertGitFile,
			protocol.WorkspacePathRequest{WorkspaceID: workspaceID, Path: path})
	}
	return c.local.RevertGitFile(ctx, workspaceID, path)
}

func (c *Commands) RevertGitAll(ctx context.Context, workspaceID string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodRevertGitAll,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.RevertGitAll(ctx, workspaceID)
}

func (c *Commands) CommitGit(ctx context.Context, workspaceID, message string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodCommitGit,
			protocol.WorkspaceMessageRequest{WorkspaceID: workspaceID, Message: message})
	}
	return c.local.CommitGit(ctx, workspaceID, message)
}

func (c *Commands) PushGit(ctx context.Context, workspaceID string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodPushGit,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.PushGit(ctx, workspaceID)
}

func (c *Commands) PullGit(ctx context.Context, workspaceID string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodPullGit,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.PullGit(ctx, workspaceID)
}

func (c *Commands) FetchGit(ctx context.Context, workspaceID string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodFetchGit,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.FetchGit(ctx, workspaceID)
}

func (c *Commands) SyncGit(ctx context.Context, workspaceID string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodSyncGit,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.SyncGit(ctx, workspaceID)
}

// ListGitRoots finds nested repositories. A nil depth uses the handler
// default.
func (c *Commands) ListGitRoots(ctx context.Context, workspaceID string, depth *uint32) ([]string, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[[]string](ctx, c, protocol.MethodListGitRoots,
			protocol.ListGitRootsRequest{WorkspaceID: workspaceID, Depth: depth})
	}
	return c.local.ListGitRoots(ctx, workspaceID, intPtr(depth))
}

func (c *Commands) GetGitDiffs(ctx context.Context, workspaceID string) ([]gitcore.GitFileDiff, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[[]gitcore.GitFileDiff](ctx, c, protocol.MethodGetGitDiffs,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.GetGitDiffs(ctx, workspaceID)
}

func (c *Commands) GetGitLog(ctx context.Context, workspaceID string, limit *uint32) (gitcore.GitLogResponse, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[gitcore.GitLogResponse](ctx, c, protocol.MethodGetGitLog,
			protocol.GetGitLogRequest{WorkspaceID: workspaceID, Limit: limit})
	}
	return c.local.GetGitLog(ctx, workspaceID, intPtr(limit))
}

func (c *Commands) GetGitCommitDiff(ctx context.Context, workspaceID, sha string) ([]gitcore.GitCommitDiff, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[[]gitcore.GitCommitDiff](ctx, c, protocol.MethodGetGitCommitDiff,
			protocol.WorkspaceShaRequest{WorkspaceID: workspaceID, Sha: sha})
	}
	return c.local.GetGitCommitDiff(ctx, workspaceID, sha)
}

func (c *Commands) GetGitRemote(ctx context.Context, workspaceID string) (*string, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[*string](ctx, c, protocol.MethodGetGitRemote,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.GetGitRemote(ctx, workspaceID)
}

func (c *Commands) GetGitHubIssues(ctx context.Context, workspaceID string) (gitcore.GitHubIssuesResponse, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[gitcore.GitHubIssuesResponse](ctx, c, protocol.MethodGetGitHubIssues,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.GetGitHubIssues(ctx, workspaceID)
}

func (c *Commands) GetGitHubPullRequests(ctx context.Context, workspaceID string) (gitcore.GitHubPullRequestsResponse, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[gitcore.GitHubPullRequestsResponse](ctx, c, protocol.MethodGetGitHubPullRequests,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.GetGitHubPullRequests(ctx, workspaceID)
}

func (c *Commands) GetGitHubPullRequestDiff(ctx context.Context, workspaceID string, prNumber uint64) ([]gitcore.GitHubPullRequestDiff, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[[]gitcore.GitHubPullRequestDiff](ctx, c, protocol.MethodGetGitHubPullRequestDiff,
			protocol.GitHubPullRequestRequest{WorkspaceID: workspaceID, PRNumber: prNumber})
	}
	return c.local.GetGitHubPullRequestDiff(ctx, workspaceID, prNumber)
}

func (c *Commands) GetGitHubPullRequestComments(ctx context.Context, workspaceID string, prNumber uint64) ([]gitcore.GitHubPullRequestComment, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[[]gitcore.GitHubPullRequestComment](ctx, c, protocol.MethodGetGitHubPullRequestComments,
			protocol.GitHubPullRequestRequest{WorkspaceID: workspaceID, PRNumber: prNumber})
	}
	return c.local.GetGitHubPullRequestComments(ctx, workspaceID, prNumber)
}

func (c *Commands) CheckoutGitHubPullRequest(ctx context.Context, workspaceID string, prNumber uint64) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodCheckoutGitHubPullRequest,
			protocol.GitHubPullRequestRequest{WorkspaceID: workspaceID, PRNumber: prNumber})
	}
	return c.local.CheckoutGitHubPullRequest(ctx, workspaceID, prNumber)
}

func (c *Commands) ListGitBranches(ctx context.Context, workspaceID string) (json.RawMessage, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[json.RawMessage](ctx, c, protocol.MethodListGitBranches,
			protocol.WorkspaceIDRequest{WorkspaceID: workspaceID})
	}
	return c.local.ListGitBranches(ctx, workspaceID)
}

func (c *Commands) CheckoutGitBranch(ctx context.Context, workspaceID, name string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodCheckoutGitBranch,
			protocol.WorkspaceNameRequest{WorkspaceID: workspaceID, Name: name})
	}
	return c.local.CheckoutGitBranch(ctx, workspaceID, name)
}

func (c *Commands) CreateGitBranch(ctx context.Context, workspaceID, name string) error {
	if c.mode(ctx) == ModeRemote {
		return forwardUnit(ctx, c, protocol.MethodCreateGitBranch,
			protocol.WorkspaceNameRequest{WorkspaceID: workspaceID, Name: name})
	}
	return c.local.CreateGitBranch(ctx, workspaceID, name)
}

func (c *Commands) GenerateCommitMessage(ctx context.Context, workspaceID string, modelID *string) (string, error) {
	if c.mode(ctx) == ModeRemote {
		return forward[string](ctx, c, protocol.MethodGenerateCommitMessage, protocol.GenerateCommitMessageRequest{
			WorkspaceID:          workspaceID,
			CommitMessageModelID: modelID,
		})
	}
	return c.local.GenerateCommitMessage(ctx, workspaceID, modelID)
}
