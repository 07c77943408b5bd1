package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIStreamAssemblesToolCalls(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Looking "}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"at page 2."}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"chromiumLog","arguments":"{\"page\":"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"gitShow","arguments":""}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"2}"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"function":{"arguments":"{\"sha\":\"abc\"}"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
	})

	p := NewOpenAICompatibleProvider("openai", "sk-test", srv.URL+"/v1", "gpt-4o", 100, 0.2)
	chunks := make(chan string, 16)
	resp, err := p.StreamWithTools(context.Background(), []ChatMessage{UserMessage("hi")}, nil, chunks)
	require.NoError(t, err)
	close(chunks)

	var streamed []string
	for c := range chunks {
		streamed = append(streamed, c)
	}
	assert.Equal(t, []string{"Looking ", "at page 2."}, streamed)
	assert.Equal(t, "Looking at page 2.", resp.Content)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_a", resp.ToolCalls[0].ID)
	assert.Equal(t, "chromiumLog", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"page":2}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, "gitShow", resp.ToolCalls[1].Name)
	assert.JSONEq(t, `{"sha":"abc"}`, string(resp.ToolCalls[1].Arguments))

	require.NotNil(t, resp.Usage)
	assert.EqualValues(t, 15, resp.Usage.TotalTokens)
}

func TestAssembleCallsOrdersByIndex(t *testing.T) {
	calls := assembleCalls(map[int]*partialCall{
		1: {id: "b", name: "gitShow", args: []byte(`{"sha":"1"}`)},
		0: {id: "a", name: "chromiumLog"},
	})
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].ID)
	assert.JSONEq(t, `{}`, string(calls[0].Arguments))
	assert.Equal(t, "b", calls[1].ID)

	assert.Nil(t, assembleCalls(nil))
}

func unauthorizedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-test-invalid-key-12345xyz"
	srv := unauthorizedServer(t, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	p := NewOpenAICompatibleProvider("openai", testKey, srv.URL+"/v1", "gpt-4o", 100, 0.2)

	_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("test")})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
	assert.NotContains(t, err.Error(), "Authorization:")

	_, err = p.StreamWithTools(context.Background(), []ChatMessage{UserMessage("test")}, nil, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
}

func TestAnthropicErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-ant-REDACTED"
	srv := unauthorizedServer(t, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	p := NewAnthropicProvider(testKey, ModelAnthropicClaudeSonnet4, 100, 0.2,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("test")})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey)
	assert.NotContains(t, err.Error(), "X-Api-Key:")
}

func TestGeminiInitErrorIsReported(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	p := NewGeminiProvider("", ModelGeminiFlash25, 100, 0.2)
	_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("test")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize Gemini client")

	_, err = p.StreamWithTools(context.Background(), []ChatMessage{UserMessage("test")}, nil, nil)
	require.Error(t, err)
}

func conversation() []ChatMessage {
	return []ChatMessage{
		SystemMessage("You analyse build failures."),
		UserMessage("Why did the build break?"),
		AssistantToolCallMessage("Checking.", []ToolCall{
			{ID: "c1", Name: "chromiumLog", Arguments: json.RawMessage(`{"page":1}`)},
			{ID: "c2", Name: "gitShow", Arguments: json.RawMessage(`{"sha":"abc"}`)},
		}),
		ToolResultMessage("c1", "chromiumLog", "page one"),
		ToolResultMessage("c2", "gitShow", "commit abc"),
		UserMessage("continue"),
	}
}

func TestAnthropicFoldsToolResults(t *testing.T) {
	msgs, system := convertToAnthropicMessages(conversation())
	assert.Equal(t, "You analyse build failures.", system)
	require.Len(t, msgs, 4)

	require.Len(t, msgs[1].Content, 3)
	require.NotNil(t, msgs[1].Content[1].OfToolUse)
	assert.Equal(t, "c1", msgs[1].Content[1].OfToolUse.ID)

	require.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "c1", msgs[2].Content[0].OfToolResult.ToolUseID)
	assert.Equal(t, "c2", msgs[2].Content[1].OfToolResult.ToolUseID)
}

func TestGeminiGroupsFunctionResponses(t *testing.T) {
	contents, system := convertToGeminiMessages(conversation())
	assert.Equal(t, "You analyse build failures.", system)
	require.Len(t, contents, 4)

	model := contents[1]
	require.Len(t, model.Parts, 3)
	require.NotNil(t, model.Parts[2].FunctionCall)
	assert.Equal(t, "c2", model.Parts[2].FunctionCall.ID)
	assert.Equal(t, "abc", model.Parts[2].FunctionCall.Args["sha"])

	responses := contents[2]
	require.Len(t, responses.Parts, 2)
	assert.Equal(t, "c1", responses.Parts[0].FunctionResponse.ID)
	assert.Equal(t, "gitShow", responses.Parts[1].FunctionResponse.Name)
	assert.Equal(t, "commit abc", responses.Parts[1].FunctionResponse.Response["output"])
}

func TestGeminiSchemaTypes(t *testing.T) {
	tools := convertToGeminiTools([]ToolDefinition{{
		Name: "chromiumLog",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"page":    map[string]interface{}{"type": "integer"},
				"reverse": map[string]interface{}{"type": "boolean"},
			},
			"required": []string{"page"},
		},
	}})
	require.Len(t, tools, 1)
	decl := tools[0].FunctionDeclarations[0]
	assert.Equal(t, "chromiumLog", decl.Name)
	require.Contains(t, decl.Parameters.Properties, "page")
	assert.Equal(t, mapToGeminiType("integer"), decl.Parameters.Properties["page"].Type)

	assert.Nil(t, convertToGeminiTools(nil))
}

func TestParseProviderType(t *testing.T) {
	for in, want := range map[string]ProviderType{
		"openai": ProviderOpenAI, "Claude": ProviderAnthropic,
		"deepseek": ProviderDeepSeek, "GOOGLE": ProviderGemini,
	} {
		got, err := ParseProviderType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseProviderType("llama")
	assert.Error(t, err)
}

func TestBuilderRequiresKey(t *testing.T) {
	_, err := ProviderDeepSeek.APIKey("")
	assert.Error(t, err)

	p, err := ProviderDeepSeek.APIKey("sk-x")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", p.Name())
	assert.Equal(t, ModelDeepSeekChat, p.Model())

	p, err = ProviderAnthropic.Model("claude-x").MaxTokens(100).Temperature(0).APIKey("sk-y")
	require.NoError(t, err)
	assert.Equal(t, "claude-x", p.Model())
	assert.Equal(t, "anthropic", ProviderAnthropic.String())
}

type scriptedProvider struct {
	chunks []string
	resp   LLMResponse
}

func (s *scriptedProvider) Name() string  { return "scripted" }
func (s *scriptedProvider) Model() string { return "m" }
func (s *scriptedProvider) Chat(ctx context.Context, _ []ChatMessage) (LLMResponse, error) {
	return s.resp, nil
}
func (s *scriptedProvider) ChatWithTools(ctx context.Context, _ []ChatMessage, _ []ToolDefinition) (LLMResponse, error) {
	return s.resp, nil
}
func (s *scriptedProvider) StreamWithTools(ctx context.Context, _ []ChatMessage, _ []ToolDefinition, chunks chan<- string) (LLMResponse, error) {
	for _, c := range s.chunks {
		if err := emit(ctx, chunks, c); err != nil {
			return LLMResponse{}, err
		}
	}
	return s.resp, nil
}

func TestClientStreamForwardsText(t *testing.T) {
	p := &scriptedProvider{
		chunks: []string{"a", "b", "c"},
		resp:   LLMResponse{Content: "abc", Usage: &TokenUsage{PromptTokens: 3, TotalTokens: 4}},
	}
	c := NewClient(p)

	var got strings.Builder
	resp, err := c.Stream(context.Background(), nil, nil, func(s string) { got.WriteString(s) })
	require.NoError(t, err)
	assert.Equal(t, "abc", got.String())
	assert.Equal(t, "abc", resp.Content)

	text, err := c.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", text)

	usage, calls := c.Usage()
	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 8, usage.TotalTokens)
}
