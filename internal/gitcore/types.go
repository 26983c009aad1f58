package gitcore

// Result payloads returned by the handlers. Field names match what the
// front end already renders.

type GitFileStatus struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

type GitStatus struct {
	BranchName     string          `json:"branchName"`
	Files          []GitFileStatus `json:"files"`
	StagedFiles    []GitFileStatus `json:"stagedFiles"`
	UnstagedFiles  []GitFileStatus `json:"unstagedFiles"`
	TotalAdditions int             `json:"totalAdditions"`
	TotalDeletions int             `json:"totalDeletions"`
}

type GitFileDiff struct {
	Path     string `json:"path"`
	Diff     string `json:"diff"`
	IsBinary bool   `json:"isBinary,omitempty"`
}

type GitLogEntry struct {
	Sha       string `json:"sha"`
	Summary   string `json:"summary"`
	Author    string `json:"author"`
	Timestamp int64  `json:"timestamp"`
}

type GitLogResponse struct {
	Total         int           `json:"total"`
	Entries       []GitLogEntry `json:"entries"`
	Ahead         int           `json:"ahead"`
	Behind        int           `json:"behind"`
	AheadEntries  []GitLogEntry `json:"aheadEntries"`
	BehindEntries []GitLogEntry `json:"behindEntries"`
	Upstream      *string       `json:"upstream,omitempty"`
}

type GitCommitDiff struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Diff   string `json:"diff"`
}

type GitBranch struct {
	Name       string `json:"name"`
	LastCommit int64  `json:"lastCommit"`
}

type GitBranchList struct {
	Current  string      `json:"current"`
	Branches []GitBranch `json:"branches"`
}

type GitHubUser struct {
	Login string `json:"login"`
}

type GitHubIssue struct {
	Number    uint64 `json:"number"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	UpdatedAt string `json:"updatedAt"`
}

type GitHubIssuesResponse struct {
	Total  int           `json:"total"`
	Issues []GitHubIssue `json:"issues"`
}

type GitHubPullRequest struct {
	Number      uint64      `json:"number"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	UpdatedAt   string      `json:"updatedAt"`
	CreatedAt   string      `json:"createdAt"`
	Body        string      `json:"body"`
	HeadRefName string      `json:"headRefName"`
	BaseRefName string      `json:"baseRefName"`
	IsDraft     bool        `json:"isDraft"`
	Author      *GitHubUser `json:"author,omitempty"`
}

type GitHubPullRequestsResponse struct {
	Total        int                 `json:"total"`
	PullRequests []GitHubPullRequest `json:"pullRequests"`
}

type GitHubPullRequestDiff struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Diff   string `json:"diff"`
}

type GitHubPullRequestComment struct {
	ID        uint64      `json:"id"`
	Body      string      `json:"body"`
	CreatedAt string      `json:"createdAt"`
	URL       string      `json:"url"`
	Author    *GitHubUser `json:"author,omitempty"`
}
