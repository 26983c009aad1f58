package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z8n24/codexmonitor-go/internal/gateway/protocol"
	"github.com/z8n24/codexmonitor-go/internal/gitcore/gitcoretest"
)

func dispatch(t *testing.T, d *Dispatcher, method, params string) *protocol.Envelope {
	t.Helper()
	env, ok := d.Dispatch(context.Background(), method, json.RawMessage(params))
	require.True(t, ok, "method %s not dispatched", method)
	require.NoError(t, env.Validate())
	return env
}

func TestBindingsCoverCatalog(t *testing.T) {
	require.NoError(t, checkBindings())
}

func TestDispatchUnknownMethod(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	d := NewDispatcher(rec)
	for _, name := range []string{"", "Stage_Git_File", "unknown_method"} {
		env, ok := d.Dispatch(context.Background(), name, json.RawMessage(`{"workspaceId":"w1"}`))
		assert.False(t, ok, name)
		assert.Nil(t, env)
	}
	assert.Empty(t, rec.Calls())
}

func TestDispatchStageGitFile(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	env := dispatch(t, NewDispatcher(rec), "stage_git_file", `{"workspaceId":"w1","path":"src/a.ts"}`)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))

	call, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, gitcoretest.Call{Method: "stage_git_file", WorkspaceID: "w1", Args: []any{"src/a.ts"}}, call)
}

func TestDispatchHandlerFailure(t *testing.T) {
	rec := &gitcoretest.Recorder{Err: errors.New("nothing to commit, working tree clean")}
	env := dispatch(t, NewDispatcher(rec), "commit_git", `{"workspaceId":"w1","message":"fix"}`)

	assert.False(t, env.OK)
	assert.Equal(t, "nothing to commit, working tree clean", env.Error)
	assert.Len(t, rec.Calls(), 1)
}

func TestDispatchDecodeFailsBeforeHandler(t *testing.T) {
	tests := []struct {
		method string
		params string
		field  string
	}{
		{"commit_git", `{"workspaceId":"w1"}`, "message"},
		{"stage_git_file", `{"path":"a"}`, "workspaceId"},
		{"get_github_pull_request_diff", `{"workspaceId":"w1","prNumber":null}`, "prNumber"},
		{"init_git_repo", `{"workspaceId":"w1","force":true}`, "branch"},
		{"create_github_repo", `{"workspaceId":"w1","repo":"acme/app"}`, "visibility"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := &gitcoretest.Recorder{}
			env := dispatch(t, NewDispatcher(rec), tt.method, tt.params)
			assert.False(t, env.OK)
			assert.Contains(t, env.Error, "missing field `"+tt.field+"`")
			assert.Empty(t, rec.Calls())
		})
	}
}

func TestDispatchNonObjectParams(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	env := dispatch(t, NewDispatcher(rec), "get_git_status", `["w1"]`)
	assert.False(t, env.OK)
	assert.Empty(t, rec.Calls())
}

func TestDispatchOptionalDefaults(t *testing.T) {
	tests := []struct {
		name   string
		method string
		params string
		args   []any
	}{
		{"roots without depth", "list_git_roots", `{"workspaceId":"w1"}`, []any{nil}},
		{"roots with depth", "list_git_roots", `{"workspaceId":"w1","depth":3}`, []any{3}},
		{"roots with bad depth", "list_git_roots", `{"workspaceId":"w1","depth":"deep"}`, []any{nil}},
		{"roots with negative depth", "list_git_roots", `{"workspaceId":"w1","depth":-1}`, []any{nil}},
		{"log without limit", "get_git_log", `{"workspaceId":"w1"}`, []any{nil}},
		{"log with limit", "get_git_log", `{"workspaceId":"w1","limit":5}`, []any{5}},
		{"init without force", "init_git_repo", `{"workspaceId":"w1","branch":"main"}`, []any{"main", false}},
		{"init with bad force", "init_git_repo", `{"workspaceId":"w1","branch":"main","force":"yes"}`, []any{"main", false}},
		{"init with force", "init_git_repo", `{"workspaceId":"w1","branch":"main","force":true}`, []any{"main", true}},
		{"repo without branch", "create_github_repo", `{"workspaceId":"w1","repo":"acme/app","visibility":"private"}`, []any{"acme/app", "private", nil}},
		{"repo with branch", "create_github_repo", `{"workspaceId":"w1","repo":"acme/app","visibility":"private","branch":"dev"}`, []any{"acme/app", "private", "dev"}},
		{"message without model", "generate_commit_message", `{"workspaceId":"w1"}`, []any{nil}},
		{"message with null model", "generate_commit_message", `{"workspaceId":"w1","commitMessageModelId":null}`, []any{nil}},
		{"message with model", "generate_commit_message", `{"workspaceId":"w1","commitMessageModelId":"gpt-5"}`, []any{"gpt-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &gitcoretest.Recorder{}
			env := dispatch(t, NewDispatcher(rec), tt.method, tt.params)
			assert.True(t, env.OK, env.Error)

			call, ok := rec.Last()
			require.True(t, ok)
			assert.Equal(t, tt.method, call.Method)
			assert.Equal(t, tt.args, call.Args)
		})
	}
}

func TestDispatchResults(t *testing.T) {
	d := NewDispatcher(&gitcoretest.Recorder{})

	env := dispatch(t, d, "list_git_roots", `{"workspaceId":"w1"}`)
	assert.JSONEq(t, `[".","depth-2"]`, string(env.Data))

	env = dispatch(t, d, "get_git_remote", `{"workspaceId":"no-remote"}`)
	assert.True(t, env.OK)
	assert.JSONEq(t, `null`, string(env.Data))

	env = dispatch(t, d, "get_git_remote", `{"workspaceId":"app"}`)
	assert.JSONEq(t, `"git@github.com:acme/app.git"`, string(env.Data))

	env = dispatch(t, d, "get_git_status", `{"workspaceId":"w1"}`)
	var status map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "main", status["branchName"])

	env = dispatch(t, d, "get_github_pull_request_comments", `{"workspaceId":"w1","prNumber":3}`)
	assert.Contains(t, string(env.Data), `"id":300`)
}

func TestDispatchEveryMethodRuns(t *testing.T) {
	params := map[protocol.Method]string{
		protocol.MethodInitGitRepo:                  `{"workspaceId":"w1","branch":"main"}`,
		protocol.MethodCreateGitHubRepo:             `{"workspaceId":"w1","repo":"acme/app","visibility":"private"}`,
		protocol.MethodStageGitFile:                 `{"workspaceId":"w1","path":"a"}`,
		protocol.MethodUnstageGitFile:               `{"workspaceId":"w1","path":"a"}`,
		protocol.MethodRevertGitFile:                `{"workspaceId":"w1","path":"a"}`,
		protocol.MethodCommitGit:                    `{"workspaceId":"w1","message":"m"}`,
		protocol.MethodGetGitCommitDiff:             `{"workspaceId":"w1","sha":"abc"}`,
		protocol.MethodGetGitHubPullRequestDiff:     `{"workspaceId":"w1","prNumber":1}`,
		protocol.MethodGetGitHubPullRequestComments: `{"workspaceId":"w1","prNumber":1}`,
		protocol.MethodCheckoutGitHubPullRequest:    `{"workspaceId":"w1","prNumber":1}`,
		protocol.MethodCheckoutGitBranch:            `{"workspaceId":"w1","name":"dev"}`,
		protocol.MethodCreateGitBranch:              `{"workspaceId":"w1","name":"dev"}`,
	}
	rec := &gitcoretest.Recorder{}
	d := NewDispatcher(rec)
	for _, m := range protocol.AllMethods {
		p, ok := params[m]
		if !ok {
			p = `{"workspaceId":"w1"}`
		}
		env := dispatch(t, d, string(m), p)
		assert.True(t, env.OK, "%s: %s", m, env.Error)

		call, ok := rec.Last()
		require.True(t, ok)
		assert.Equal(t, string(m), call.Method)
		assert.Equal(t, "w1", call.WorkspaceID)
	}
	assert.Len(t, rec.Calls(), len(protocol.AllMethods))
}
