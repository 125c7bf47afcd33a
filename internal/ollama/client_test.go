package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pbaille/imgclf/internal/config"
)

func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newClient(url string) *Client {
	return New(config.OllamaConfig{Endpoint: url, Prompt: config.DefaultPrompt})
}

func TestGenerateSendsRequest(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	var got GenerateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"model":"llava","response":"{\"class\": \"cat\"}","done":true}`))
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).Generate(context.Background(), writeImage(t, image), "llava")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got.Model != "llava" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Prompt != config.DefaultPrompt {
		t.Errorf("prompt = %q", got.Prompt)
	}
	if got.Stream {
		t.Error("stream should be false")
	}
	if got.Format != "json" {
		t.Errorf("format = %q", got.Format)
	}
	if len(got.Images) != 1 || got.Images[0] != base64.StdEncoding.EncodeToString(image) {
		t.Errorf("images = %v", got.Images)
	}

	if resp.Response == nil || *resp.Response != `{"class": "cat"}` {
		t.Errorf("response = %v", resp.Response)
	}
	if !resp.Done {
		t.Error("done should be true")
	}
	if len(resp.Raw) == 0 {
		t.Error("raw body not kept")
	}
}

func TestGenerateStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).Generate(context.Background(), writeImage(t, []byte("x")), "missing")
	if resp != nil {
		t.Errorf("expected nil response, got %+v", resp)
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", se.Code)
	}
	if se.Error() != "API Error 404" {
		t.Errorf("message = %q", se.Error())
	}
}

func TestGenerateMissingResponseField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).Generate(context.Background(), writeImage(t, []byte("x")), "llava")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Response != nil {
		t.Errorf("response should be absent, got %q", *resp.Response)
	}
}

func TestGenerateLenientEnvelope(t *testing.T) {
	for name, body := range map[string]string{
		"empty timestamp":   `{"created_at":"","response":"{\"class\":\"cat\"}"}`,
		"odd timestamp":     `{"created_at":"yesterday","response":"{\"class\":\"cat\"}"}`,
		"fractional counts": `{"total_duration":1.5e9,"eval_count":12.0,"response":"{\"class\":\"cat\"}"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			resp, err := newClient(srv.URL).Generate(context.Background(), writeImage(t, []byte("x")), "llava")
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if resp.Response == nil || *resp.Response != `{"class":"cat"}` {
				t.Errorf("response = %v", resp.Response)
			}
		})
	}
}

func TestGenerateMissingFile(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Generate(context.Background(), filepath.Join(t.TempDir(), "gone.png"), "llava")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if called {
		t.Error("server should not be called when the file is unreadable")
	}
}

func TestGenerateCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"{}"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(srv.URL).Generate(ctx, writeImage(t, []byte("x")), "llava")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
