package protocol

// Request shapes shared by the client dispatcher and the daemon. Keys are
// camelCase on the wire. Pointer fields are optional and are left out of the
// encoded params when nil; every other field is required.

type WorkspaceIDRequest struct {
	WorkspaceID string `json:"workspaceId"`
}

type InitGitRepoRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Branch      string `json:"branch"`
	Force       *bool  `json:"force,omitempty"`
}

// InitGitRepoRequiredRequest is the daemon-side decode target for
// init_git_repo. Force is read from Extras instead.
type InitGitRepoRequiredRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Branch      string `json:"branch"`
}

type CreateGitHubRepoRequest struct {
	WorkspaceID string  `json:"workspaceId"`
	Repo        string  `json:"repo"`
	Visibility  string  `json:"visibility"`
	Branch      *string `json:"branch,omitempty"`
}

// CreateGitHubRepoRequiredRequest is the daemon-side decode target for
// create_github_repo. Branch is read from Extras instead.
type CreateGitHubRepoRequiredRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Repo        string `json:"repo"`
	Visibility  string `json:"visibility"`
}

type WorkspacePathRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Path        string `json:"path"`
}

type ListGitRootsRequest struct {
	WorkspaceID string  `json:"workspaceId"`
	Depth       *uint32 `json:"depth,omitempty"`
}

type GetGitLogRequest struct {
	WorkspaceID string  `json:"workspaceId"`
	Limit       *uint32 `json:"limit,omitempty"`
}

type WorkspaceShaRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Sha         string `json:"sha"`
}

type WorkspaceMessageRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Message     string `json:"message"`
}

type GitHubPullRequestRequest struct {
	WorkspaceID string `json:"workspaceId"`
	PRNumber    uint64 `json:"prNumber"`
}

type WorkspaceNameRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
}

type GenerateCommitMessageRequest struct {
	WorkspaceID          string  `json:"workspaceId"`
	CommitMessageModelID *string `json:"commitMessageModelId,omitempty"`
}

// Extension keys read loosely from raw params by the daemon. The typed
// optional fields above carry the same keys for callers and documentation.
const (
	ExtraForce                = "force"                // init_git_repo, bool, default false
	ExtraBranch               = "branch"               // create_github_repo, string
	ExtraDepth                = "depth"                // list_git_roots, uint32
	ExtraLimit                = "limit"                // get_git_log, uint32
	ExtraCommitMessageModelID = "commitMessageModelId" // generate_commit_message, string
)
