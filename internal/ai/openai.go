package ai

import (
    "bytes"
    "context"
    "encoding/base64"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
)

type OpenAIClient struct{
    http    *http.Client
    apiKey  string
    baseURL string
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
    if baseURL == "" { baseURL = "https://api.openai.com/v1" }
    return &OpenAIClient{http: &http.Client{}, apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")}
}
func (c *OpenAIClient) Name() string { return "openai" }

type openAIMessage struct {
    Role    string                   `json:"role"`
    Content []map[string]interface{} `json:"content"`
}

type openAIChatReq struct {
    Model          string          `json:"model"`
    Messages       []openAIMessage `json:"messages"`
    Temperature    float64         `json:"temperature"`
    MaxTokens      int             `json:"max_tokens,omitempty"`
    ResponseFormat map[string]any  `json:"response_format,omitempty"`
}

type openAIChatResp struct {
    Choices []struct {
        Message struct {
            Content string `json:"content"`
        } `json:"message"`
    } `json:"choices"`
    Usage struct {
        PromptTokens     int `json:"prompt_tokens"`
        CompletionTokens int `json:"completion_tokens"`
    } `json:"usage"`
}

func (c *OpenAIClient) Do(ctx context.Context, req Request) (Response, error) {
    if c.apiKey == "" {
        return Response{}, errors.New("missing OPENAI_API_KEY")
    }

    var messages []openAIMessage
    if req.SystemPrompt != "" {
        messages = append(messages, openAIMessage{
            Role: "system",
            Content: []map[string]interface{}{
                {"type": "text", "text": req.SystemPrompt},
            },
        })
    }

    var userContent []map[string]interface{}
    if len(req.Image) > 0 {
        imageURL := fmt.Sprintf("data:%s;base64,%s", req.ImageMIME, base64.StdEncoding.EncodeToString(req.Image))
        userContent = append(userContent, map[string]interface{}{
            "type":      "image_url",
            "image_url": map[string]string{"url": imageURL, "detail": "high"},
        })
    }
    userContent = append(userContent, map[string]interface{}{"type": "text", "text": req.Prompt})
    messages = append(messages, openAIMessage{Role: "user", Content: userContent})

    payload := openAIChatReq{
        Model:       req.Model,
        Messages:    messages,
        Temperature: 0,
        MaxTokens:   8192,
    }
    if req.Schema != nil {
        // strict mode rejects optional properties, so keep it off
        payload.ResponseFormat = map[string]any{
            "type": "json_schema",
            "json_schema": map[string]any{
                "name":   "voters",
                "schema": map[string]any{
                    "type":       "object",
                    "properties": map[string]any{"voters": req.Schema},
                    "required":   []string{"voters"},
                },
            },
        }
    }

    body, _ := json.Marshal(payload)
    httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
    httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
    httpReq.Header.Set("Content-Type", "application/json")

    resp, err := c.http.Do(httpReq)
    if err != nil {
        return Response{}, err
    }
    defer resp.Body.Close()

    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
        return Response{}, &HTTPError{StatusCode: resp.StatusCode, Body: string(b), Provider: c.Name()}
    }

    var r openAIChatResp
    if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
        return Response{}, err
    }
    if len(r.Choices) == 0 || strings.TrimSpace(r.Choices[0].Message.Content) == "" {
        return Response{}, ErrEmptyResponse
    }

    return Response{
        Text:      r.Choices[0].Message.Content,
        TokensIn:  r.Usage.PromptTokens,
        TokensOut: r.Usage.CompletionTokens,
    }, nil
}
