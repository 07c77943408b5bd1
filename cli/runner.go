// Command execution for CLI commands.
//
// Information Hiding:
// - Flow selection and continuation lookup hidden
// - Turn persistence hidden
// - Output formatting and user-facing failure text hidden

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/richinex/patchscout/agent"
	"github.com/richinex/patchscout/config"
	"github.com/richinex/patchscout/history"
	"github.com/richinex/patchscout/internal/logging"
	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/mcp"
	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/storage"
	"github.com/richinex/patchscout/tools"
	"github.com/richinex/patchscout/vcs"

	jsonutil "github.com/richinex/patchscout/internal/json"
)

// ErrReported means the failure was already explained on the output; the
// caller only needs to set the exit status.
var ErrReported = errors.New("failure reported")

// App runs analyses against one Chromium checkout.
type App struct {
	settings  config.Settings
	out       io.Writer
	history   tools.History
	registry  *tools.Registry
	provider  llm.Provider
	store     storage.TurnStore
	sessionID string
}

// Option configures an App.
type Option func(*App)

// WithOutput sends user-visible text to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithProvider uses p instead of building a provider from settings.
func WithProvider(p llm.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithHistory uses h instead of the git-backed history service.
func WithHistory(h tools.History) Option {
	return func(a *App) { a.history = h }
}

// WithSession records turns in store under sessionID so "continue" can
// resume a later invocation.
func WithSession(store storage.TurnStore, sessionID string) Option {
	return func(a *App) {
		a.store = store
		a.sessionID = sessionID
	}
}

// New creates an App from settings.
func New(settings config.Settings, opts ...Option) *App {
	a := &App{settings: settings, out: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}
	if a.history == nil {
		a.history = newHistory(settings)
	}
	a.registry = tools.NewChromiumRegistry(a.history, toolConfig(settings))
	return a
}

// Range resolves the versions to compare. An empty end defaults to the
// version of the configured checkout.
func (a *App) Range(from, to string) model.VersionRange {
	if to == "" {
		v, err := history.ReadVersion(a.settings.Repo.ChromiumRoot)
		if err != nil {
			logging.Debug("checkout version unavailable", "error", err)
		}
		to = v
	}
	return model.VersionRange{Start: from, End: to}
}

// Analyze classifies errorText and runs the matching flow.
func (a *App) Analyze(ctx context.Context, r model.VersionRange, errorText string, patchPaths []string) error {
	if agent.IsContinue(errorText) {
		return a.continueLast(ctx, r, errorText)
	}
	if strings.TrimSpace(errorText) == "" {
		fmt.Fprintln(a.out, "No error text to analyse.")
		return nil
	}

	provider, err := a.modelProvider()
	if err != nil {
		return a.explain(err)
	}
	kind, err := agent.NewClassifier(provider).Classify(ctx, errorText)
	if err != nil {
		return a.explain(err)
	}
	logging.Info("error classified", "kind", string(kind))

	switch kind {
	case agent.KindBuild:
		return a.BuildError(ctx, r, errorText)
	case agent.KindSync:
		return a.SyncError(ctx, r, errorText, patchPaths)
	default:
		fmt.Fprintln(a.out, agent.UnknownErrorMessage)
		return nil
	}
}

// continueLast resumes whichever continuing flow the session ran last.
func (a *App) continueLast(ctx context.Context, r model.VersionRange, request string) error {
	var flow string
	if a.store != nil {
		turn, err := a.store.LastTurn(ctx, a.sessionID)
		if err != nil {
			return a.explain(err)
		}
		if turn != nil {
			flow = turn.Flow
		}
	}

	switch flow {
	case (&agent.BuildErrorFlow{}).Name():
		return a.BuildError(ctx, r, request)
	case (&agent.CommitSearchFlow{}).Name():
		return a.Search(ctx, r, request)
	default:
		fmt.Fprintln(a.out, "There is no previous analysis to continue.")
		return nil
	}
}

// BuildError looks for the upstream commit behind a build error. The
// continuation keyword resumes the session's previous build analysis.
func (a *App) BuildError(ctx context.Context, r model.VersionRange, errorText string) error {
	flow := &agent.BuildErrorFlow{Range: r, ErrorText: errorText}
	if agent.IsContinue(errorText) {
		turn, cont, err := a.resume(ctx, flow.Name())
		if err != nil {
			return a.explain(err)
		}
		if cont != nil {
			flow.ErrorText = turn.Subject
			flow.Continuation = cont
		}
	}
	return a.run(ctx, flow, errorText, flow.ErrorText)
}

// Search answers a question about the commits in r.
func (a *App) Search(ctx context.Context, r model.VersionRange, query string) error {
	flow := &agent.CommitSearchFlow{Range: r, Query: query}
	if agent.IsContinue(query) {
		turn, cont, err := a.resume(ctx, flow.Name())
		if err != nil {
			return a.explain(err)
		}
		if cont != nil {
			flow.Query = turn.Subject
			flow.Continuation = cont
		}
	}
	return a.run(ctx, flow, query, flow.Query)
}

// SyncError explains why patches failed to apply. Without explicit patch
// files, the patches directory is searched for patches the error mentions.
func (a *App) SyncError(ctx context.Context, r model.VersionRange, errorText string, patchPaths []string) error {
	patches, err := a.loadPatches(errorText, patchPaths)
	if err != nil {
		return a.explain(err)
	}
	flow := &agent.SyncErrorFlow{Range: r, ErrorText: errorText, Patches: patches}
	return a.run(ctx, flow, errorText, errorText)
}

func (a *App) run(ctx context.Context, flow agent.Flow, request, subject string) error {
	driver, err := a.driver()
	if err != nil {
		return a.explain(err)
	}

	var onText func(string)
	streamed := false
	if flow.Streams() {
		onText = func(text string) {
			streamed = true
			fmt.Fprint(a.out, text)
		}
	}

	result, err := driver.Run(ctx, flow, onText)
	if streamed {
		fmt.Fprintln(a.out)
	}
	if err != nil {
		if !errors.Is(err, agent.ErrPrerequisite) {
			a.record(ctx, flow, request, subject, userMessage(err), result)
		}
		return a.explain(err)
	}

	if !flow.Streams() || result.Outcome == agent.OutcomeInconclusive {
		fmt.Fprintln(a.out, result.Text)
	}
	a.record(ctx, flow, request, subject, result.Text, result)
	if result.Continuation != nil && a.store != nil {
		fmt.Fprintf(a.out, "\nReply %q to keep reading the log.\n", agent.ContinueKeyword)
	}

	usage := result.Metadata.TokenUsage
	logging.Info("analysis complete",
		"flow", flow.Name(),
		"outcome", result.Outcome.String(),
		"llm_calls", result.Metadata.LLMCalls,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"duration_ms", result.Metadata.ExecutionTimeMs)
	return nil
}

// resume returns the session's last turn and its continuation when that
// turn belongs to flowName.
func (a *App) resume(ctx context.Context, flowName string) (*storage.Turn, *model.Continuation, error) {
	if a.store == nil {
		return nil, nil, nil
	}
	turn, err := a.store.LastTurn(ctx, a.sessionID)
	if err != nil || turn == nil || turn.Flow != flowName {
		return nil, nil, err
	}
	cont, err := turn.Resume()
	if err != nil {
		return nil, nil, err
	}
	return turn, cont, nil
}

func (a *App) record(ctx context.Context, flow agent.Flow, request, subject, response string, result agent.Result) {
	if a.store == nil {
		return
	}
	_, err := a.store.AppendTurn(ctx, storage.Turn{
		SessionID:    a.sessionID,
		Flow:         flow.Name(),
		Request:      request,
		Subject:      subject,
		Response:     response,
		Continuation: result.ContinuationJSON(),
	})
	if err != nil {
		logging.Warn("failed to record turn", "session", a.sessionID, "error", err)
	}
}

func (a *App) modelProvider() (llm.Provider, error) {
	if a.provider == nil {
		p, err := createProvider(a.settings)
		if err != nil {
			return nil, err
		}
		a.provider = p
	}
	return a.provider, nil
}

func (a *App) driver() (*agent.Driver, error) {
	provider, err := a.modelProvider()
	if err != nil {
		return nil, err
	}
	return newDriver(a.settings, provider, a.registry)
}

// loadPatches parses the named patch files, or discovers the ones relevant
// to errorText under the patches directory.
func (a *App) loadPatches(errorText string, paths []string) ([]agent.Patch, error) {
	if len(paths) > 0 {
		patches := make([]agent.Patch, 0, len(paths))
		for _, path := range paths {
			p, err := readPatch(path)
			if err != nil {
				return nil, err
			}
			patches = append(patches, p)
		}
		return patches, nil
	}

	var all []agent.Patch
	err := filepath.WalkDir(a.settings.Repo.PatchesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".patch" {
			return nil
		}
		p, err := readPatch(path)
		if err != nil {
			logging.Warn("skipping unreadable patch", "path", path, "error", err)
			return nil
		}
		all = append(all, p)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("patches directory missing", "dir", a.settings.Repo.PatchesDir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan patches: %w", err)
	}
	patches := agent.NewPatchIndex(all).Mentioned(errorText)
	logging.Debug("patches matched", "scanned", len(all), "matched", len(patches))
	return patches, nil
}

func readPatch(path string) (agent.Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return agent.Patch{}, fmt.Errorf("failed to read patch: %w", err)
	}
	return agent.ParsePatch(filepath.Base(path), string(data))
}

// ListTools lists the history tools.
func (a *App) ListTools(verbose bool) {
	fmt.Fprintln(a.out, "Available tools:")
	fmt.Fprintln(a.out)

	for _, meta := range a.registry.List() {
		fmt.Fprintf(a.out, "  %s\n", meta.Name)
		fmt.Fprintf(a.out, "    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Fprintln(a.out, "    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Fprintf(a.out, "      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Fprintln(a.out)
	}
}

// RunTool executes one tool directly, without a model. Zero-valued
// arguments are left out so the tool applies its defaults.
func (a *App) RunTool(ctx context.Context, name string, args map[string]interface{}) error {
	tool, ok := a.registry.Get(name)
	if !ok {
		fmt.Fprintf(a.out, "Unknown tool: %s\n", name)
		return ErrReported
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var fields []jsonutil.Field
	for _, k := range keys {
		switch v := args[k]; v {
		case "", 0, false, nil:
		default:
			fields = append(fields, jsonutil.Set(k, v))
		}
	}
	input, err := jsonutil.Merge(nil, fields...)
	if err != nil {
		return a.explain(err)
	}

	result, err := tools.ExecuteOnce(ctx, tool, input)
	if errors.Is(err, tools.ErrPageExhausted) {
		fmt.Fprintln(a.out, "No commits after the given commit on this page.")
		return nil
	}
	if err != nil {
		return a.explain(err)
	}
	fmt.Fprintln(a.out, result.Text())
	if !result.Success() {
		return ErrReported
	}
	return nil
}

// ServeMCP exposes the history tools as an MCP server on r and w until r
// is closed.
func (a *App) ServeMCP(ctx context.Context, r io.Reader, w io.Writer, version string) error {
	server := mcp.NewServer(a.registry, tools.NewExecutor(toolConfig(a.settings)), version)
	return server.Serve(ctx, r, w)
}

// Sessions lists stored session ids.
func (a *App) Sessions(ctx context.Context) error {
	if a.store == nil {
		fmt.Fprintln(a.out, "No session store configured.")
		return nil
	}
	ids, err := a.store.ListSessions(ctx)
	if err != nil {
		return a.explain(err)
	}
	for _, id := range ids {
		turns, err := a.store.Turns(ctx, id)
		if err != nil {
			return a.explain(err)
		}
		fmt.Fprintf(a.out, "%s\t%d turns\n", id, len(turns))
	}
	return nil
}

// explain writes a plain-text account of err. Prerequisite failures are an
// answer, not a failure, and yield nil.
func (a *App) explain(err error) error {
	var pre *agent.PrerequisiteError
	if errors.As(err, &pre) {
		fmt.Fprintln(a.out, pre.Message)
		return nil
	}
	logging.Error("analysis failed", "error", err)
	fmt.Fprintln(a.out, userMessage(err))
	return ErrReported
}

func userMessage(err error) string {
	var cmdErr *vcs.CommandError
	switch {
	case errors.Is(err, context.Canceled):
		return "Analysis cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Analysis timed out."
	case errors.As(err, &cmdErr):
		return "A git command failed in the Chromium checkout. See the log for details."
	default:
		return "Analysis failed: " + err.Error()
	}
}
