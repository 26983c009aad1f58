package protocol

// Method identifies one operation in the catalog. The string value is the
// wire name; both the client dispatcher and the daemon refer to these
// constants and never to literals.
type Method string

const (
	MethodGetGitStatus                 Method = "get_git_status"
	MethodInitGitRepo                  Method = "init_git_repo"
	MethodCreateGitHubRepo             Method = "create_github_repo"
	MethodStageGitFile                 Method = "stage_git_file"
	MethodStageGitAll                  Method = "stage_git_all"
	MethodUnstageGitFile               Method = "unstage_git_file"
	MethodRevertGitFile                Method = "revert_git_file"
	MethodRevertGitAll                 Method = "revert_git_all"
	MethodCommitGit                    Method = "commit_git"
	MethodPushGit                      Method = "push_git"
	MethodPullGit                      Method = "pull_git"
	MethodFetchGit                     Method = "fetch_git"
	MethodSyncGit                      Method = "sync_git"
	MethodListGitRoots                 Method = "list_git_roots"
	MethodGetGitDiffs                  Method = "get_git_diffs"
	MethodGetGitLog                    Method = "get_git_log"
	MethodGetGitCommitDiff             Method = "get_git_commit_diff"
	MethodGetGitRemote                 Method = "get_git_remote"
	MethodGetGitHubIssues              Method = "get_github_issues"
	MethodGetGitHubPullRequests        Method = "get_github_pull_requests"
	MethodGetGitHubPullRequestDiff     Method = "get_github_pull_request_diff"
	MethodGetGitHubPullRequestComments Method = "get_github_pull_request_comments"
	MethodCheckoutGitHubPullRequest    Method = "checkout_github_pull_request"
	MethodListGitBranches              Method = "list_git_branches"
	MethodCheckoutGitBranch            Method = "checkout_git_branch"
	MethodCreateGitBranch              Method = "create_git_branch"
	MethodGenerateCommitMessage        Method = "generate_commit_message"
)

// AllMethods is the closed catalog, in declaration order.
var AllMethods = []Method{
	MethodGetGitStatus,
	MethodInitGitRepo,
	MethodCreateGitHubRepo,
	MethodStageGitFile,
	MethodStageGitAll,
	MethodUnstageGitFile,
	MethodRevertGitFile,
	MethodRevertGitAll,
	MethodCommitGit,
	MethodPushGit,
	MethodPullGit,
	MethodFetchGit,
	MethodSyncGit,
	MethodListGitRoots,
	MethodGetGitDiffs,
	MethodGetGitLog,
	MethodGetGitCommitDiff,
	MethodGetGitRemote,
	MethodGetGitHubIssues,
	MethodGetGitHubPullRequests,
	MethodGetGitHubPullRequestDiff,
	MethodGetGitHubPullRequestComments,
	MethodCheckoutGitHubPullRequest,
	MethodListGitBranches,
	MethodCheckoutGitBranch,
	MethodCreateGitBranch,
	MethodGenerateCommitMessage,
}

var methodIndex = func() map[string]Method {
	idx := make(map[string]Method, len(AllMethods))
	for _, m := range AllMethods {
		if _, dup := idx[string(m)]; dup {
			panic("protocol: duplicate method " + string(m))
		}
		idx[string(m)] = m
	}
	return idx
}()

// LookupMethod matches name against the catalog by exact string equality.
func LookupMethod(name string) (Method, bool) {
	m, ok := methodIndex[name]
	return m, ok
}

// SupportedMethods returns the wire names advertised in the hello frame.
func SupportedMethods() []string {
	out := make([]string, len(AllMethods))
	for i, m := range AllMethods {
		out[i] = string(m)
	}
	return out
}

// SupportedEvents lists the server-pushed events.
var SupportedEvents = []string{
	"tick",
	"shutdown",
}

// ErrorCodes are the frame-level error codes. Handler failures are not coded;
// they travel as the envelope's error string.
var ErrorCodes = struct {
	InvalidRequest     string
	MethodNotFound     string
	Unauthorized       string
	InternalError      string
	ServiceUnavailable string
}{
	InvalidRequest:     "INVALID_REQUEST",
	MethodNotFound:     "METHOD_NOT_FOUND",
	Unauthorized:       "UNAUTHORIZED",
	InternalError:      "INTERNAL_ERROR",
	ServiceUnavailable: "SERVICE_UNAVAILABLE",
}

// NewError builds a frame-level error.
func NewError(code, message string) *ErrorShape {
	return &ErrorShape{
		Code:    code,
		Message: message,
	}
}
