package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/patchscout/agent"
	"github.com/richinex/patchscout/config"
	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/storage"
	"github.com/richinex/patchscout/tools"
	"github.com/richinex/patchscout/vcs"
)

var testRange = model.VersionRange{Start: "136.0.7064.0", End: "136.0.7067.0"}

func sha(i int) string {
	return fmt.Sprintf("%040x", i+1)
}

type fakeHistory struct {
	shas     []string
	rangeErr error
}

func newFakeHistory(n int) *fakeHistory {
	h := &fakeHistory{}
	for i := 0; i < n; i++ {
		h.shas = append(h.shas, sha(i))
	}
	return h
}

func (h *fakeHistory) RangeCommits(context.Context, model.VersionRange) ([]string, error) {
	return h.shas, h.rangeErr
}

func (h *fakeHistory) ImplicatedCommits(context.Context, model.VersionRange, string) ([]string, error) {
	return nil, nil
}

func (h *fakeHistory) Hydrate(_ context.Context, shas []string) ([]model.Commit, error) {
	commits := make([]model.Commit, len(shas))
	for i, s := range shas {
		commits[i] = model.Commit{SHA: s, Message: "Change " + s[36:]}
	}
	return commits, nil
}

func (h *fakeHistory) CommitDetails(_ context.Context, s string) (model.Commit, error) {
	return model.Commit{SHA: s, Message: "Change " + s[36:]}, nil
}

func (h *fakeHistory) Diff(context.Context, string) (string, error) {
	return "--- a/base/x.h\n+++ b/base/x.h", nil
}

func (h *fakeHistory) FileLog(context.Context, model.VersionRange, string) ([]string, error) {
	return []string{"commit " + h.shas[0] + "\n\nChange"}, nil
}

func (h *fakeHistory) FileDiff(context.Context, string, string) (string, error) {
	return "commit " + h.shas[0] + "\n\n--- a/base/x.h", nil
}

// reply is one scripted model turn.
type reply struct {
	chunks []string
	text   string
	calls  []llm.ToolCall
}

type scriptedProvider struct {
	mu       sync.Mutex
	replies  []reply
	requests [][]llm.ChatMessage
}

func script(replies ...reply) *scriptedProvider {
	return &scriptedProvider{replies: replies}
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	return p.StreamWithTools(ctx, messages, nil, nil)
}

func (p *scriptedProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (llm.LLMResponse, error) {
	return p.StreamWithTools(ctx, messages, defs, nil)
}

func (p *scriptedProvider) StreamWithTools(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition, chunks chan<- string) (llm.LLMResponse, error) {
	p.mu.Lock()
	n := len(p.requests)
	p.requests = append(p.requests, append([]llm.ChatMessage(nil), messages...))
	p.mu.Unlock()

	r := reply{text: "done"}
	if n < len(p.replies) {
		r = p.replies[n]
	}
	text := r.text
	if len(r.chunks) > 0 {
		text = strings.Join(r.chunks, "")
		for _, c := range r.chunks {
			if chunks != nil {
				chunks <- c
			}
		}
	}
	return llm.LLMResponse{Content: text, ToolCalls: r.calls}, nil
}

func (p *scriptedProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// userMessage returns the user prompt of request n.
func (p *scriptedProvider) userMessage(n int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.requests[n] {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func testSettings(t *testing.T) config.Settings {
	return config.Settings{
		LLM:      config.LLMConfig{Provider: "openai"},
		Analysis: config.AnalysisConfig{PageSize: 25, MaxRounds: 5},
		Repo: config.RepoConfig{
			ChromiumRoot: t.TempDir(),
			PatchesDir:   filepath.Join(t.TempDir(), "patches"),
		},
	}
}

func newTestApp(t *testing.T, settings config.Settings, p llm.Provider, h tools.History, opts ...Option) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	opts = append([]Option{WithOutput(&out), WithProvider(p), WithHistory(h)}, opts...)
	return New(settings, opts...), &out
}

func TestSearchPersistsAndContinues(t *testing.T) {
	ctx := context.Background()
	settings := testSettings(t)
	h := newFakeHistory(5)
	store := storage.NewInMemoryStorage()

	first := script(
		reply{calls: []llm.ToolCall{call("c1", tools.ToolChromiumLog, `{}`)}},
		reply{calls: []llm.ToolCall{call("c2", tools.ToolGitShow, `{"sha":"`+sha(2)+`"}`)}},
		reply{text: "Commit " + sha(2)[:8] + " renamed Foo."},
	)
	app, out := newTestApp(t, settings, first, h, WithSession(store, "s1"))
	require.NoError(t, app.Search(ctx, testRange, "who renamed Foo"))

	assert.Contains(t, out.String(), "renamed Foo.")
	assert.Contains(t, out.String(), `Reply "continue"`)

	last, err := store.LastTurn(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "commit_search", last.Flow)
	assert.Equal(t, "who renamed Foo", last.Subject)
	cont, err := last.Resume()
	require.NoError(t, err)
	require.NotNil(t, cont)
	assert.Equal(t, sha(2), cont.After)
	assert.Equal(t, testRange.End, cont.EndVersion)

	second := script(reply{text: "Nothing else renamed Foo."})
	app, out = newTestApp(t, settings, second, h, WithSession(store, "s1"))
	require.NoError(t, app.Search(ctx, model.VersionRange{}, "continue"))

	assert.Contains(t, out.String(), "Nothing else renamed Foo.")
	prompt := second.userMessage(0)
	assert.Contains(t, prompt, "who renamed Foo")
	assert.Contains(t, prompt, sha(2))

	turns, err := store.Turns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "continue", turns[1].Request)
	assert.Equal(t, "who renamed Foo", turns[1].Subject)
	assert.Empty(t, turns[1].Continuation)
}

func TestContinueWithoutHistory(t *testing.T) {
	p := script()
	app, out := newTestApp(t, testSettings(t), p, newFakeHistory(3), WithSession(storage.NewInMemoryStorage(), "s1"))

	require.NoError(t, app.Search(context.Background(), testRange, "continue"))
	assert.Equal(t, "There is no previous search to continue.\n", out.String())

	out.Reset()
	require.NoError(t, app.Analyze(context.Background(), testRange, "continue", nil))
	assert.Equal(t, "There is no previous analysis to continue.\n", out.String())
	assert.Zero(t, p.count())
}

func TestAnalyzeUnknown(t *testing.T) {
	p := script(reply{text: "UNKNOWN"})
	app, out := newTestApp(t, testSettings(t), p, newFakeHistory(3))

	require.NoError(t, app.Analyze(context.Background(), testRange, "segfault in the renderer", nil))
	assert.Equal(t, agent.UnknownErrorMessage+"\n", out.String())
	assert.Equal(t, 1, p.count())
}

func TestAnalyzeRoutesBuildErrors(t *testing.T) {
	p := script(
		reply{text: "BUILD"},
		reply{text: "The culprit renamed base::Foo."},
	)
	app, out := newTestApp(t, testSettings(t), p, newFakeHistory(3))

	errorText := "../../chrome/app.cc:12: error: no member named 'Foo' in namespace 'base'"
	require.NoError(t, app.Analyze(context.Background(), testRange, errorText, nil))
	assert.Equal(t, "The culprit renamed base::Foo.\n", out.String())
	assert.Equal(t, 2, p.count())
	assert.Contains(t, p.userMessage(1), "no member named 'Foo'")
}

const appPatch = `diff --git a/chrome/app.cc b/chrome/app.cc
index 1111111..2222222 100644
--- a/chrome/app.cc
+++ b/chrome/app.cc
@@ -1,2 +1,2 @@
 #include "chrome/app.h"
-int Run() { return 0; }
+int Run() { return 1; }
`

const otherPatch = `diff --git a/base/other.cc b/base/other.cc
index 3333333..4444444 100644
--- a/base/other.cc
+++ b/base/other.cc
@@ -1 +1 @@
-int x = 0;
+int x = 1;
`

func TestSyncErrorDiscoversMentionedPatches(t *testing.T) {
	settings := testSettings(t)
	require.NoError(t, os.MkdirAll(filepath.Join(settings.Repo.PatchesDir, "chrome"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(settings.Repo.PatchesDir, "chrome", "app.patch"), []byte(appPatch), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(settings.Repo.PatchesDir, "other.patch"), []byte(otherPatch), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(settings.Repo.PatchesDir, "notes.txt"), []byte("not a patch"), 0o644))

	p := script(reply{chunks: []string{"The hunk ", "moved."}})
	app, out := newTestApp(t, settings, p, newFakeHistory(3))

	err := app.SyncError(context.Background(), testRange, "error: patch failed: chrome/app.cc:1", nil)
	require.NoError(t, err)
	assert.Equal(t, "The hunk moved.\n", out.String())

	prompt := p.userMessage(0)
	assert.Contains(t, prompt, "app.patch")
	assert.NotContains(t, prompt, "other.patch")
}

func TestSyncErrorExplicitPatch(t *testing.T) {
	settings := testSettings(t)
	path := filepath.Join(t.TempDir(), "other.patch")
	require.NoError(t, os.WriteFile(path, []byte(otherPatch), 0o644))

	p := script(reply{chunks: []string{"Rebase it."}})
	app, _ := newTestApp(t, settings, p, newFakeHistory(3))

	require.NoError(t, app.SyncError(context.Background(), testRange, "patch does not apply", []string{path}))
	assert.Contains(t, p.userMessage(0), "base/other.cc")
}

func TestSyncErrorWithoutPatches(t *testing.T) {
	p := script()
	app, out := newTestApp(t, testSettings(t), p, newFakeHistory(3))

	require.NoError(t, app.SyncError(context.Background(), testRange, "error: patch failed: chrome/app.cc:1", nil))
	assert.Equal(t, "No failed patch found to analyse.\n", out.String())
	assert.Zero(t, p.count())
}

func TestCommandFailureIsExplained(t *testing.T) {
	h := newFakeHistory(3)
	h.rangeErr = &vcs.CommandError{Command: "git log", ExitCode: 128, Stderr: "fatal: not a git repository"}
	store := storage.NewInMemoryStorage()
	p := script(reply{calls: []llm.ToolCall{call("c1", tools.ToolChromiumLog, `{}`)}})
	app, out := newTestApp(t, testSettings(t), p, h, WithSession(store, "s1"))

	err := app.Search(context.Background(), testRange, "who renamed Foo")
	assert.ErrorIs(t, err, ErrReported)
	assert.Contains(t, out.String(), "A git command failed")
	assert.NotContains(t, out.String(), "not a git repository")

	turns, err := store.Turns(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Contains(t, turns[0].Response, "A git command failed")
}

func TestRunTool(t *testing.T) {
	app, out := newTestApp(t, testSettings(t), script(), newFakeHistory(3))
	ctx := context.Background()

	require.NoError(t, app.RunTool(ctx, tools.ToolGitShow, map[string]interface{}{"sha": sha(1)}))
	assert.Contains(t, out.String(), "Change")
	assert.Contains(t, out.String(), "base/x.h")

	out.Reset()
	err := app.RunTool(ctx, tools.ToolGitShow, map[string]interface{}{"sha": "XYZ"})
	assert.ErrorIs(t, err, ErrReported)
	assert.Contains(t, out.String(), "Invalid commit SHA: XYZ")

	out.Reset()
	err = app.RunTool(ctx, "bash", nil)
	assert.ErrorIs(t, err, ErrReported)
	assert.Equal(t, "Unknown tool: bash\n", out.String())
}

func TestRunToolLogSkipsZeroArguments(t *testing.T) {
	app, out := newTestApp(t, testSettings(t), script(), newFakeHistory(3))

	err := app.RunTool(context.Background(), tools.ToolChromiumLog, map[string]interface{}{
		"startVersion": testRange.Start,
		"endVersion":   testRange.End,
		"page":         1,
		"pageSize":     0,
		"reverse":      false,
		"after":        "",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), sha(0))
	assert.Contains(t, out.String(), sha(2))
}

func TestRangeDefaultsToCheckoutVersion(t *testing.T) {
	settings := testSettings(t)
	require.NoError(t, os.MkdirAll(filepath.Join(settings.Repo.ChromiumRoot, "chrome"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(settings.Repo.ChromiumRoot, "chrome", "VERSION"),
		[]byte("MAJOR=136\nMINOR=0\nBUILD=7067\nPATCH=0\n"), 0o644))
	app, _ := newTestApp(t, settings, script(), newFakeHistory(1))

	assert.Equal(t, testRange, app.Range(testRange.Start, ""))
	assert.Equal(t, "1.0.0.1", app.Range("1.0.0.0", "1.0.0.1").End)

	app, _ = newTestApp(t, testSettings(t), script(), newFakeHistory(1))
	assert.Empty(t, app.Range(testRange.Start, "").End)
}

func TestListTools(t *testing.T) {
	app, out := newTestApp(t, testSettings(t), script(), newFakeHistory(1))
	app.ListTools(true)

	for _, name := range []string{tools.ToolChromiumLog, tools.ToolGitShow, tools.ToolChromiumFileLog, tools.ToolChromiumFileShow} {
		assert.Contains(t, out.String(), name)
	}
	assert.Contains(t, out.String(), "startVersion*")
}

func TestSessions(t *testing.T) {
	store := storage.NewInMemoryStorage()
	_, err := store.AppendTurn(context.Background(), storage.Turn{SessionID: "s1", Flow: "commit_search"})
	require.NoError(t, err)

	app, out := newTestApp(t, testSettings(t), script(), newFakeHistory(1), WithSession(store, "s1"))
	require.NoError(t, app.Sessions(context.Background()))
	assert.Equal(t, "s1\t1 turns\n", out.String())
}

func TestServeMCPListsHistoryTools(t *testing.T) {
	app, _ := newTestApp(t, testSettings(t), script(), newFakeHistory(1))
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")
	var out bytes.Buffer
	require.NoError(t, app.ServeMCP(context.Background(), in, &out, "test"))

	assert.Contains(t, out.String(), `"id":1`)
	assert.Contains(t, out.String(), tools.ToolChromiumFileShow)
	assert.NotContains(t, out.String(), `"error":{"code"`)
}
