package commands

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z8n24/codexmonitor-go/internal/config"
	"github.com/z8n24/codexmonitor-go/internal/gateway/protocol"
	"github.com/z8n24/codexmonitor-go/internal/gitcore/gitcoretest"
)

type sent struct {
	Method protocol.Method
	Params json.RawMessage
}

// fakeTransport answers every call with env or err.
type fakeTransport struct {
	env *protocol.Envelope
	err error

	mu    sync.Mutex
	calls []sent
}

func (f *fakeTransport) Send(ctx context.Context, method protocol.Method, params json.RawMessage) (*protocol.Envelope, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sent{Method: method, Params: params})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.env == nil {
		return protocol.EncodeUnit(nil), nil
	}
	return f.env, nil
}

func (f *fakeTransport) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func fixed(m Mode) ModeOracle {
	return ModeFunc(func() Mode { return m })
}

func TestEveryCatalogMethodHasEntryPoint(t *testing.T) {
	typ := reflect.TypeOf(&Commands{})
	names := make(map[string]bool, typ.NumMethod())
	for i := 0; i < typ.NumMethod(); i++ {
		names[strings.ToLower(typ.Method(i).Name)] = true
	}
	for _, m := range protocol.AllMethods {
		key := strings.ReplaceAll(string(m), "_", "")
		assert.True(t, names[key], "no entry point for %s", m)
	}
	assert.Equal(t, len(protocol.AllMethods), typ.NumMethod())
}

func TestLocalModeNeverForwards(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	tr := &fakeTransport{}
	c := New(rec, tr, fixed(ModeLocal))

	roots, err := c.ListGitRoots(context.Background(), "w1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{".", "depth-2"}, roots)
	require.NoError(t, c.StageGitFile(context.Background(), "w1", "a.go"))

	assert.Len(t, rec.Calls(), 2)
	assert.Empty(t, tr.calls)
}

func TestUnsetModeRunsLocally(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	tr := &fakeTransport{}

	require.NoError(t, New(rec, tr, nil).PushGit(context.Background(), "w1"))
	require.NoError(t, New(rec, tr, fixed(ModeUnset)).PushGit(context.Background(), "w1"))
	assert.Len(t, rec.Calls(), 2)
	assert.Empty(t, tr.calls)
}

func TestRemoteModeNeverRunsLocally(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	tr := &fakeTransport{}
	c := New(rec, tr, fixed(ModeRemote))

	require.NoError(t, c.StageGitFile(context.Background(), "w1", "src/a.ts"))
	got := tr.last(t)
	assert.Equal(t, protocol.MethodStageGitFile, got.Method)
	assert.JSONEq(t, `{"workspaceId":"w1","path":"src/a.ts"}`, string(got.Params))
	assert.Empty(t, rec.Calls())
}

func TestRemoteFailureDoesNotFallBack(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	cause := errors.New("connection refused")
	c := New(rec, &fakeTransport{err: cause}, fixed(ModeRemote))

	err := c.FetchGit(context.Background(), "w1")
	assert.ErrorIs(t, err, cause)
	_, err = c.GetGitDiffs(context.Background(), "w1")
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, rec.Calls())
}

func TestRemoteHandlerErrorIsVerbatim(t *testing.T) {
	tr := &fakeTransport{env: protocol.EncodeFailure(errors.New("nothing to commit, working tree clean"))}
	c := New(&gitcoretest.Recorder{}, tr, fixed(ModeRemote))

	err := c.CommitGit(context.Background(), "w1", "fix")
	var re *protocol.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "nothing to commit, working tree clean", err.Error())
}

func TestRemoteResultMismatch(t *testing.T) {
	tr := &fakeTransport{env: protocol.EncodeValue(map[string]int{"x": 1}, nil)}
	c := New(&gitcoretest.Recorder{}, tr, fixed(ModeRemote))

	_, err := c.ListGitRoots(context.Background(), "w1", nil)
	var de *protocol.DecodeError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Result)
}

func TestRemoteWithoutTransport(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	c := New(rec, nil, fixed(ModeRemote))

	assert.ErrorIs(t, c.PullGit(context.Background(), "w1"), ErrNoTransport)
	assert.Empty(t, rec.Calls())
}

func TestWithModeOverridesOracle(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	tr := &fakeTransport{}
	c := New(rec, tr, fixed(ModeRemote))

	ctx := WithMode(context.Background(), ModeLocal)
	require.NoError(t, c.SyncGit(ctx, "w1"))
	assert.Len(t, rec.Calls(), 1)
	assert.Empty(t, tr.calls)

	c = New(rec, tr, fixed(ModeLocal))
	require.NoError(t, c.SyncGit(WithMode(context.Background(), ModeRemote), "w1"))
	assert.Len(t, tr.calls, 1)

	// Unset in the context defers to the oracle.
	require.NoError(t, c.SyncGit(WithMode(context.Background(), ModeUnset), "w1"))
	assert.Len(t, rec.Calls(), 2)
}

func TestModeReadPerCall(t *testing.T) {
	rec := &gitcoretest.Recorder{}
	tr := &fakeTransport{}
	mode := ModeLocal
	c := New(rec, tr, ModeFunc(func() Mode { return mode }))

	require.NoError(t, c.StageGitAll(context.Background(), "w1"))
	mode = ModeRemote
	require.NoError(t, c.StageGitAll(context.Background(), "w1"))

	assert.Len(t, rec.Calls(), 1)
	assert.Len(t, tr.calls, 1)
}

func TestOptionalParamsOmitted(t *testing.T) {
	tr := &fakeTransport{env: protocol.EncodeValue([]string{"."}, nil)}
	c := New(&gitcoretest.Recorder{}, tr, fixed(ModeRemote))
	ctx := context.Background()

	_, err := c.ListGitRoots(ctx, "w1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"workspaceId":"w1"}`, string(tr.last(t).Params))

	depth := uint32(0)
	_, err = c.ListGitRoots(ctx, "w1", &depth)
	require.NoError(t, err)
	assert.JSONEq(t, `{"workspaceId":"w1","depth":0}`, string(tr.last(t).Params))

	tr.env = protocol.EncodePassthrough(json.RawMessage(`{}`), nil)
	_, err = c.InitGitRepo(ctx, "w1", "main", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"workspaceId":"w1","branch":"main"}`, string(tr.last(t).Params))

	tr.env = protocol.EncodeValue("msg", nil)
	_, err = c.GenerateCommitMessage(ctx, "w1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"workspaceId":"w1"}`, string(tr.last(t).Params))
}

func TestPullRequestNumberOnWire(t *testing.T) {
	tr := &fakeTransport{}
	c := New(&gitcoretest.Recorder{}, tr, fixed(ModeRemote))

	require.NoError(t, c.CheckoutGitHubPullRequest(context.Background(), "w1", 1<<40))
	got := tr.last(t)
	assert.Equal(t, protocol.MethodCheckoutGitHubPullRequest, got.Method)
	assert.JSONEq(t, `{"workspaceId":"w1","prNumber":1099511627776}`, string(got.Params))
}

func TestConfigMode(t *testing.T) {
	store := config.NewStore(t.TempDir() + "/config.json")
	oracle := ConfigMode(store)
	assert.Equal(t, ModeLocal, oracle.Mode())

	_, err := store.Update(func(c *config.Config) {
		c.Backend.Mode = config.ModeRemote
		c.Backend.RemoteURL = "ws://127.0.0.1:4732/ws"
	})
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, oracle.Mode())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "local", ModeLocal.String())
	assert.Equal(t, "remote", ModeRemote.String())
	assert.Equal(t, "unset", ModeUnset.String())
}
