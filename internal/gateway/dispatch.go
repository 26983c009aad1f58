package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/z8n24/codexmonitor-go/internal/gateway/protocol"
	"github.com/z8n24/codexmonitor-go/internal/gitcore"
)

// binding decodes params for one method and runs its handler.
type binding func(ctx context.Context, b gitcore.Backend, params json.RawMessage) *protocol.Envelope

// value binds a method whose handler returns a typed result.
func value[Req, Res any](call func(context.Context, gitcore.Backend, Req, protocol.Extras) (Res, error)) binding {
	return func(ctx context.Context, b gitcore.Backend, params json.RawMessage) *protocol.Envelope {
		req, err := protocol.FromParams[Req](params)
		if err != nil {
			return protocol.EncodeFailure(err)
		}
		return protocol.EncodeValue(call(ctx, b, req, protocol.ExtrasFrom(params)))
	}
}

// unit binds a method whose handler returns only an error.
func unit[Req any](call func(context.Context, gitcore.Backend, Req) error) binding {
	return func(ctx context.Context, b gitcore.Backend, params json.RawMessage) *protocol.Envelope {
		req, err := protocol.FromParams[Req](params)
		if err != nil {
			return protocol.EncodeFailure(err)
		}
		return protocol.EncodeUnit(call(ctx, b, req))
	}
}

// passthrough binds a method whose handler already produced JSON.
func passthrough[Req any](call func(context.Context, gitcore.Backend, Req, protocol.Extras) (json.RawMessage, error)) binding {
	return func(ctx context.Context, b gitcore.Backend, params json.RawMessage) *protocol.Envelope {
		req, err := protocol.FromParams[Req](params)
		if err != nil {
			return protocol.EncodeFailure(err)
		}
		return protocol.EncodePassthrough(call(ctx, b, req, protocol.ExtrasFrom(params)))
	}
}

func uintToInt(v *uint32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

// bindings is the daemon's half of the catalog. Optional fields are read
// from Extras so a malformed optional value degrades to its default instead
// of failing the call.
var bindings = map[protocol.Method]binding{
	protocol.MethodGetGitStatus: passthrough(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, _ protocol.Extras) (json.RawMessage, error) {
		return b.GetGitStatus(ctx, r.WorkspaceID)
	}),
	protocol.MethodInitGitRepo: passthrough(func(ctx context.Context, b gitcore.Backend, r protocol.InitGitRepoRequiredRequest, x protocol.Extras) (json.RawMessage, error) {
		force := x.Bool(protocol.ExtraForce)
		return b.InitGitRepo(ctx, r.WorkspaceID, r.Branch, force != nil && *force)
	}),
	protocol.MethodCreateGitHubRepo: passthrough(func(ctx context.Context, b gitcore.Backend, r protocol.CreateGitHubRepoRequiredRequest, x protocol.Extras) (json.RawMessage, error) {
		return b.CreateGitHubRepo(ctx, r.WorkspaceID, r.Repo, r.Visibility, x.String(protocol.ExtraBranch))
	}),
	protocol.MethodStageGitFile: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspacePathRequest) error {
		return b.StageGitFile(ctx, r.WorkspaceID, r.Path)
	}),
	protocol.MethodStageGitAll: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest) error {
		return b.StageGitAll(ctx, r.WorkspaceID)
	}),
	protocol.MethodUnstageGitFile: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspacePathRequest) error {
		return b.UnstageGitFile(ctx, r.WorkspaceID, r.Path)
	}),
	protocol.MethodRevertGitFile: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspacePathRequest) error {
		return b.RevertGitFile(ctx, r.WorkspaceID, r.Path)
	}),
	protocol.MethodRevertGitAll: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest) error {
		return b.RevertGitAll(ctx, r.WorkspaceID)
	}),
	protocol.MethodCommitGit: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceMessageRequest) error {
		return b.CommitGit(ctx, r.WorkspaceID, r.Message)
	}),
	protocol.MethodPushGit: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest) error {
		return b.PushGit(ctx, r.WorkspaceID)
	}),
	protocol.MethodPullGit: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest) error {
		return b.PullGit(ctx, r.WorkspaceID)
	}),
	protocol.MethodFetchGit: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest) error {
		return b.FetchGit(ctx, r.WorkspaceID)
	}),
	protocol.MethodSyncGit: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest) error {
		return b.SyncGit(ctx, r.WorkspaceID)
	}),
	protocol.MethodListGitRoots: value(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, x protocol.Extras) ([]string, error) {
		return b.ListGitRoots(ctx, r.WorkspaceID, uintToInt(x.Uint32(protocol.ExtraDepth)))
	}),
	protocol.MethodGetGitDiffs: value(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, _ protocol.Extras) ([]gitcore.GitFileDiff, error) {
		return b.GetGitDiffs(ctx, r.WorkspaceID)
	}),
	protocol.MethodGetGitLog: value(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, x protocol.Extras) (gitcore.GitLogResponse, error) {
		return b.GetGitLog(ctx, r.WorkspaceID, uintToInt(x.Uint32(protocol.ExtraLimit)))
	}),
	protocol.MethodGetGitCommitDiff: value(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceShaRequest, _ protocol.Extras) ([]gitcore.GitCommitDiff, error) {
		return b.GetGitCommitDiff(ctx, r.WorkspaceID, r.Sha)
	}),
	protocol.MethodGetGitRemote: value(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, _ protocol.Extras) (*string, error) {
		return b.GetGitRemote(ctx, r.WorkspaceID)
	}),
	protocol.MethodGetGitHubIssues: value(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, _ protocol.Extras) (gitcore.GitHubIssuesResponse, error) {
		return b.GetGitHubIssues(ctx, r.WorkspaceID)
	}),
	protocol.MethodGetGitHubPullRequests: value(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, _ protocol.Extras) (gitcore.GitHubPullRequestsResponse, error) {
		return b.GetGitHubPullRequests(ctx, r.WorkspaceID)
	}),
	protocol.MethodGetGitHubPullRequestDiff: value(func(ctx context.Context, b gitcore.Backend, r protocol.GitHubPullRequestRequest, _ protocol.Extras) ([]gitcore.GitHubPullRequestDiff, error) {
		return b.GetGitHubPullRequestDiff(ctx, r.WorkspaceID, r.PRNumber)
	}),
	protocol.MethodGetGitHubPullRequestComments: value(func(ctx context.Context, b gitcore.Backend, r protocol.GitHubPullRequestRequest, _ protocol.Extras) ([]gitcore.GitHubPullRequestComment, error) {
		return b.GetGitHubPullRequestComments(ctx, r.WorkspaceID, r.PRNumber)
	}),
	protocol.MethodCheckoutGitHubPullRequest: unit(func(ctx context.Context, b gitcore.Backend, r protocol.GitHubPullRequestRequest) error {
		return b.CheckoutGitHubPullRequest(ctx, r.WorkspaceID, r.PRNumber)
	}),
	protocol.MethodListGitBranches: passthrough(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, _ protocol.Extras) (json.RawMessage, error) {
		return b.ListGitBranches(ctx, r.WorkspaceID)
	}),
	protocol.MethodCheckoutGitBranch: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceNameRequest) error {
		return b.CheckoutGitBranch(ctx, r.WorkspaceID, r.Name)
	}),
	protocol.MethodCreateGitBranch: unit(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceNameRequest) error {
		return b.CreateGitBranch(ctx, r.WorkspaceID, r.Name)
	}),
	protocol.MethodGenerateCommitMessage: value(func(ctx context.Context, b gitcore.Backend, r protocol.WorkspaceIDRequest, x protocol.Extras) (string, error) {
		return b.GenerateCommitMessage(ctx, r.WorkspaceID, x.String(protocol.ExtraCommitMessageModelID))
	}),
}

func init() {
	if err := checkBindings(); err != nil {
		panic(err)
	}
}

// checkBindings verifies the table covers the catalog exactly.
func checkBindings() error {
	for _, m := range protocol.AllMethods {
		if _, ok := bindings[m]; !ok {
			return fmt.Errorf("gateway: no binding for method %q", m)
		}
	}
	if len(bindings) != len(protocol.AllMethods) {
		return fmt.Errorf("gateway: %d bindings for %d catalog methods", len(bindings), len(protocol.AllMethods))
	}
	return nil
}

// Dispatcher routes untyped wire calls to the backend.
type Dispatcher struct {
	backend gitcore.Backend
}

// NewDispatcher creates a Dispatcher over backend.
func NewDispatcher(backend gitcore.Backend) *Dispatcher {
	return &Dispatcher{backend: backend}
}

// Dispatch runs method with params. The bool is false when method is not in
// the catalog; the caller owns the "unsupported method" reply. Handler and
// decode failures are reported inside the envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) (*protocol.Envelope, bool) {
	m, ok := protocol.LookupMethod(method)
	if !ok {
		return nil, false
	}
	env := bindings[m](ctx, d.backend, params)
	if !env.OK {
		log.Debug().Str("method", method).Str("error", env.Error).Msg("Call failed")
	}
	return env, true
}
