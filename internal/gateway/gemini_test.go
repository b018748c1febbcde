package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func candidateReply(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			}},
		},
	})
	return string(body)
}

func newTestClient(url string) *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		APIKey:      "test-key",
		BaseURL:     url,
		RetryBase:   time.Millisecond,
		MaxAttempts: 3,
	})
}

func TestGenerateConcatenatesParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-3-pro-preview") {
			t.Errorf("Generate should use the planner model, path=%s", r.URL.Path)
		}
		body, _ := json.Marshal(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "hello "}, {"text": "world"}},
				}},
			},
		})
		w.Write(body)
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Generate(context.Background(), "hi", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hello world" {
		t.Errorf("out = %q", out)
	}
}

func TestClassifyUsesRouterModelAndJSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash") {
			t.Errorf("Classify should use the router model, path=%s", r.URL.Path)
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		gc, _ := req["generationConfig"].(map[string]interface{})
		if gc["responseMimeType"] != "application/json" {
			t.Errorf("Classify should request JSON output, got %v", gc)
		}
		w.Write([]byte(candidateReply(`{"type":"simple"}`)))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Classify(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if out != `{"type":"simple"}` {
		t.Errorf("out = %q", out)
	}
}

func TestRateLimitedCallRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
			return
		}
		w.Write([]byte(candidateReply("recovered")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.retry.wait = func(context.Context, time.Duration) error { return nil }
	out, err := c.Summarize(context.Background(), "text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "recovered" {
		t.Errorf("out = %q", out)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d", calls)
	}
}

func TestQuotaBodyWithOKStatusIsStillRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.retry.wait = func(context.Context, time.Duration) error { return nil }
	_, err := c.Generate(context.Background(), "hi", false)
	if !IsRateLimit(err) {
		t.Errorf("err = %v, want rate limit classification", err)
	}
}

func TestServerErrorDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Generate(context.Background(), "hi", false)
	if err == nil || IsRateLimit(err) {
		t.Fatalf("err = %v, want non-rate-limit failure", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := NewGeminiClient(GeminiConfig{})
	if _, err := c.Generate(context.Background(), "hi", false); err == nil {
		t.Errorf("missing key should error")
	}
}
