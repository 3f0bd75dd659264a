package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestOpenAIClientSendsImageAndSchema(t *testing.T) {
	var got openAIChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"[{\"name\":\"A\",\"id\":\"ABC1234567\"}]"}}],"usage":{"prompt_tokens":3,"completion_tokens":4}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", srv.URL)
	resp, err := c.Do(context.Background(), Request{
		Model:     "gpt-4o",
		Prompt:    "extract",
		Image:     []byte{0xff, 0xd8},
		ImageMIME: "image/jpeg",
		Schema:    map[string]any{"type": "array"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !strings.Contains(resp.Text, "ABC1234567") || resp.TokensIn != 3 || resp.TokensOut != 4 {
		t.Errorf("resp = %+v", resp)
	}
	if got.Model != "gpt-4o" || got.ResponseFormat["type"] != "json_schema" {
		t.Errorf("payload = %+v", got)
	}
	url := got.Messages[0].Content[0]["image_url"].(map[string]any)["url"].(string)
	if url != "data:image/jpeg;base64,/9g=" {
		t.Errorf("image url = %q", url)
	}
}

func TestOpenAIClientRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", srv.URL).Do(context.Background(), Request{Model: "m"})
	if !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 429 {
		t.Errorf("err = %#v", err)
	}
}

func TestOpenAIClientMissingKey(t *testing.T) {
	if _, err := NewOpenAIClient("", "").Do(context.Background(), Request{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
				"box":  map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
			},
			"required": []string{"name"},
		},
	})
	if s.Type != genai.TypeArray || s.Items.Type != genai.TypeObject {
		t.Fatalf("schema = %+v", s)
	}
	if s.Items.Properties["box"].Items.Type != genai.TypeNumber || len(s.Items.Required) != 1 {
		t.Errorf("items = %+v", s.Items)
	}
}
