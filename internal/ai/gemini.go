package ai

import (
    "context"
    "fmt"
    "strings"
    "sync"

    "github.com/google/generative-ai-go/genai"
    "google.golang.org/api/option"
)

// GeminiClient calls Google Gemini with JSON-constrained output.
type GeminiClient struct {
    apiKey string

    mu     sync.Mutex
    client *genai.Client
}

func NewGeminiClient(apiKey string) *GeminiClient { return &GeminiClient{apiKey: apiKey} }

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) conn(ctx context.Context) (*genai.Client, error) {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.client != nil { return c.client, nil }
    if c.apiKey == "" { return nil, fmt.Errorf("missing GEMINI_API_KEY") }
    cl, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
    if err != nil { return nil, fmt.Errorf("failed to create Gemini client: %w", err) }
    c.client = cl
    return cl, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.client == nil { return nil }
    err := c.client.Close()
    c.client = nil
    return err
}

func (c *GeminiClient) Do(ctx context.Context, req Request) (Response, error) {
    cl, err := c.conn(ctx)
    if err != nil { return Response{}, err }

    model := cl.GenerativeModel(req.Model)
    model.SetTemperature(0)
    if req.SystemPrompt != "" {
        model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
    }
    if req.Schema != nil {
        model.ResponseMIMEType = "application/json"
        model.ResponseSchema = toGenaiSchema(req.Schema)
    }

    parts := []genai.Part{genai.Text(req.Prompt)}
    if len(req.Image) > 0 {
        parts = append(parts, genai.Blob{MIMEType: req.ImageMIME, Data: req.Image})
    }
    resp, err := model.GenerateContent(ctx, parts...)
    if err != nil {
        if strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "resource exhausted") {
            return Response{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
        }
        return Response{}, fmt.Errorf("generate content: %w", err)
    }
    if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
        return Response{}, ErrEmptyResponse
    }

    var sb strings.Builder
    for _, part := range resp.Candidates[0].Content.Parts {
        if text, ok := part.(genai.Text); ok { sb.WriteString(string(text)) }
    }
    out := Response{Text: sb.String()}
    if resp.UsageMetadata != nil {
        out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
        out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
    }
    if strings.TrimSpace(out.Text) == "" { return out, ErrEmptyResponse }
    return out, nil
}

// toGenaiSchema converts the subset of JSON schema used here.
func toGenaiSchema(m map[string]any) *genai.Schema {
    s := &genai.Schema{}
    switch m["type"] {
    case "array":
        s.Type = genai.TypeArray
    case "object":
        s.Type = genai.TypeObject
    case "number":
        s.Type = genai.TypeNumber
    case "integer":
        s.Type = genai.TypeInteger
    case "boolean":
        s.Type = genai.TypeBoolean
    default:
        s.Type = genai.TypeString
    }
    if d, ok := m["description"].(string); ok { s.Description = d }
    if items, ok := m["items"].(map[string]any); ok { s.Items = toGenaiSchema(items) }
    if props, ok := m["properties"].(map[string]any); ok {
        s.Properties = make(map[string]*genai.Schema, len(props))
        for k, v := range props {
            if pm, ok := v.(map[string]any); ok { s.Properties[k] = toGenaiSchema(pm) }
        }
    }
    if req, ok := m["required"].([]string); ok { s.Required = req }
    return s
}
