package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptpipe/internal/pipeline"
)

// recordingServer fakes a backend and records the endpoint paths hit.
type recordingServer struct {
	mu     sync.Mutex
	paths  []string
	handle func(path string, w http.ResponseWriter)
	srv    *httptest.Server
}

func newRecordingServer(handle func(path string, w http.ResponseWriter)) *recordingServer {
	rs := &recordingServer{handle: handle}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.paths = append(rs.paths, r.URL.Path)
		rs.mu.Unlock()
		rs.handle(r.URL.Path, w)
	}))
	return rs
}

func (rs *recordingServer) seen() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.paths...)
}

func testGateway(retries int) *Gateway {
	return New(Options{Retries: retries, RetryDelay: 0})
}

func TestInvokeFallsBackToSecondCandidate(t *testing.T) {
	rs := newRecordingServer(func(path string, w http.ResponseWriter) {
		switch path {
		case "/api/generate":
			http.Error(w, "no such endpoint", http.StatusNotFound)
		case "/v1/completions":
			w.Write([]byte(`{"choices":[{"text":"done","finish_reason":"stop"}],"usage":{"total_tokens":5}}`))
		default:
			http.Error(w, "unexpected", http.StatusInternalServerError)
		}
	})
	defer rs.srv.Close()

	res, err := testGateway(0).Invoke(context.Background(), rs.srv.URL, "p", pipeline.GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
	assert.Equal(t, 5, res.Metadata.Tokens)
	assert.Equal(t, []string{"/api/generate", "/v1/completions"}, rs.seen())
}

func TestInvokeShortCircuitsOnFirstSuccess(t *testing.T) {
	rs := newRecordingServer(func(path string, w http.ResponseWriter) {
		w.Write([]byte(`{"response":"ok","eval_count":2}`))
	})
	defer rs.srv.Close()

	res, err := testGateway(2).Invoke(context.Background(), rs.srv.URL, "p", pipeline.GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, []string{"/api/generate"}, rs.seen())
}

func TestInvokeChatDialectFallsThroughToDefaultChain(t *testing.T) {
	rs := newRecordingServer(func(path string, w http.ResponseWriter) {
		switch path {
		case "/api/chat":
			http.Error(w, "nope", http.StatusNotFound)
		case "/api/generate":
			w.Write([]byte(`{"response":"fallback answer"}`))
		default:
			http.Error(w, "unexpected", http.StatusInternalServerError)
		}
	})
	defer rs.srv.Close()

	res, err := testGateway(0).Invoke(context.Background(), rs.srv.URL, "p", pipeline.GenerationConfig{Dialect: "chat"})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", res.Text)
	assert.Equal(t, []string{"/api/chat", "/api/generate"}, rs.seen())
}

func TestInvokeKoboldChainOrder(t *testing.T) {
	rs := newRecordingServer(func(path string, w http.ResponseWriter) {
		switch path {
		case "/api/extra/generate/sync":
			w.Write([]byte(`{"results":[{"text":"kobold says hi"}]}`))
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	})
	defer rs.srv.Close()

	res, err := testGateway(0).Invoke(context.Background(), rs.srv.URL, "p", pipeline.GenerationConfig{Dialect: "kobold"})
	require.NoError(t, err)
	assert.Equal(t, "kobold says hi", res.Text)
	assert.Equal(t, []string{"/api/v1/generate", "/api/extra/generate/sync"}, rs.seen())
}

func TestInvokeRetriesWholeChainThenFails(t *testing.T) {
	rs := newRecordingServer(func(path string, w http.ResponseWriter) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	})
	defer rs.srv.Close()

	const retries = 2
	_, err := testGateway(retries).Invoke(context.Background(), rs.srv.URL, "p", pipeline.GenerationConfig{})
	require.Error(t, err)

	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, retries+1, gerr.Attempts)
	// plain chain has two candidates, walked once per attempt
	assert.Len(t, rs.seen(), (retries+1)*2)
	assert.Contains(t, gerr.Error(), "backend down")
}

func TestInvokeUnknownShapePropagates(t *testing.T) {
	rs := newRecordingServer(func(path string, w http.ResponseWriter) {
		w.Write([]byte(`{"totally":"unexpected"}`))
	})
	defer rs.srv.Close()

	_, err := testGateway(0).Invoke(context.Background(), rs.srv.URL, "p", pipeline.GenerationConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownShape))
}

func TestInvokeSanitizesCorruptedOutput(t *testing.T) {
	rs := newRecordingServer(func(path string, w http.ResponseWriter) {
		w.Write([]byte(`{"response":"answer<|endoftext|> tail"}`))
	})
	defer rs.srv.Close()

	res, err := testGateway(0).Invoke(context.Background(), rs.srv.URL, "p", pipeline.GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, "answer tail", res.Text)
}

func TestInvokeSendsInstructMarkers(t *testing.T) {
	var mu sync.Mutex
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		gotPrompt = body.Prompt
		mu.Unlock()
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	_, err := testGateway(0).Invoke(context.Background(), srv.URL, "hello", pipeline.GenerationConfig{Dialect: "instruct"})
	require.NoError(t, err)
	assert.Equal(t, "[INST] hello [/INST]", gotPrompt)
}

func TestInvokeEmptyBackendAddress(t *testing.T) {
	_, err := testGateway(0).Invoke(context.Background(), "  ", "p", pipeline.GenerationConfig{})
	require.Error(t, err)
}

func TestNormalizeBaseURLAddsScheme(t *testing.T) {
	got, err := normalizeBaseURL("host:11434/")
	require.NoError(t, err)
	assert.Equal(t, "http://host:11434", got)

	got, err = normalizeBaseURL("https://host")
	require.NoError(t, err)
	assert.Equal(t, "https://host", got)
}
