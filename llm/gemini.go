// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Function call/response mapping, including missing call IDs

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature float32) *GeminiProvider {
	p := &GeminiProvider{model: model, maxTokens: int32(maxTokens), temperature: temperature}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		p.initErr = fmt.Errorf("failed to initialize Gemini client: %w", err)
		return p
	}
	p.client = client
	return p
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Chat sends a chat completion request.
func (p *GeminiProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *GeminiProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error) {
	if err := p.ready(); err != nil {
		return LLMResponse{}, err
	}

	contents, config := p.request(messages, tools)
	response, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}

	var out LLMResponse
	collectGeminiParts(response, &out, nil)
	out.Usage = geminiUsage(response)
	return out, nil
}

// StreamWithTools streams a completion via the SDK iterator.
func (p *GeminiProvider) StreamWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (LLMResponse, error) {
	if err := p.ready(); err != nil {
		return LLMResponse{}, err
	}

	contents, config := p.request(messages, tools)

	var out LLMResponse
	for response, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
		if err != nil {
			return out, fmt.Errorf("stream error: %w", err)
		}
		if u := geminiUsage(response); u != nil {
			out.Usage = u
		}
		var emitErr error
		collectGeminiParts(response, &out, func(text string) {
			if emitErr == nil {
				emitErr = emit(ctx, chunks, text)
			}
		})
		if emitErr != nil {
			return out, emitErr
		}
	}
	return out, nil
}

func (p *GeminiProvider) ready() error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}
	return nil
}

func (p *GeminiProvider) request(messages []ChatMessage, tools []ToolDefinition) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents, systemInstruction := convertToGeminiMessages(messages)
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
		Tools:           convertToGeminiTools(tools),
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	return contents, config
}

// collectGeminiParts appends text and function calls of the first candidate.
// Calls without an ID get a generated one so results can be matched later.
func collectGeminiParts(response *genai.GenerateContentResponse, out *LLMResponse, onText func(string)) {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return
	}
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			out.Content += part.Text
			if onText != nil {
				onText(part.Text)
			}
		}
		if part.FunctionCall != nil {
			argsJSON, _ := json.Marshal(part.FunctionCall.Args)
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: argsJSON,
			})
		}
	}
}

func geminiUsage(response *genai.GenerateContentResponse) *TokenUsage {
	if response == nil || response.UsageMetadata == nil {
		return nil
	}
	return &TokenUsage{
		PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
		CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
	}
}

// convertToGeminiMessages maps messages to Gemini contents. Tool results
// become function responses; consecutive ones share a single content.
func convertToGeminiMessages(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string
	var responses *genai.Content

	for _, msg := range messages {
		if msg.Role != RoleTool {
			responses = nil
		}
		switch msg.Role {
		case RoleSystem:
			systemInstruction = msg.Content
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Arguments, &args)
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
				})
			}
			if len(content.Parts) == 0 {
				content.Parts = append(content.Parts, &genai.Part{Text: ""})
			}
			contents = append(contents, content)
		case RoleTool:
			if responses == nil {
				responses = &genai.Content{Role: genai.RoleUser}
				contents = append(contents, responses)
			}
			responses.Parts = append(responses.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.Name,
					Response: map[string]any{"output": msg.Content},
				},
			})
		}
	}

	return contents, systemInstruction
}

// convertToGeminiTools converts tool definitions to Gemini format.
func convertToGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		schema := convertToGeminiSchema(t.Parameters)
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGeminiSchema recursively converts a parameter schema to Gemini format.
// Handles arrays by adding required 'items' field.
func convertToGeminiSchema(params map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	// Get type if present
	if t, ok := params["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	// Get required fields
	if req, ok := params["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	// Also handle []string
	if req, ok := params["required"].([]string); ok {
		schema.Required = req
	}

	// Convert properties
	if props, ok := params["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			propMap, ok := prop.(map[string]interface{})
			if !ok {
				continue
			}
			schema.Properties[name] = convertPropertyToGeminiSchema(propMap)
		}
	}

	return schema
}

// convertPropertyToGeminiSchema converts a single property to Gemini schema.
func convertPropertyToGeminiSchema(prop map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{}

	// Get type
	if t, ok := prop["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	// Get description
	if d, ok := prop["description"].(string); ok {
		schema.Description = d
	}

	// Handle array items - Gemini requires 'items' for arrays
	if schema.Type == genai.TypeArray {
		if items, ok := prop["items"].(map[string]interface{}); ok {
			schema.Items = convertPropertyToGeminiSchema(items)
		} else {
			// Default to string items if not specified
			schema.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	// Handle nested object properties
	if schema.Type == genai.TypeObject {
		if props, ok := prop["properties"].(map[string]interface{}); ok {
			schema.Properties = make(map[string]*genai.Schema)
			for name, p := range props {
				if pMap, ok := p.(map[string]interface{}); ok {
					schema.Properties[name] = convertPropertyToGeminiSchema(pMap)
				}
			}
		}
	}

	return schema
}

// mapToGeminiType maps JSON schema type to Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
