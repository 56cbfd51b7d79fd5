package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"preptracker/pkg/trace"
)

func TestAgentClient_Advise(t *testing.T) {
	var got agentRequest
	var traceHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recommend", r.URL.Path)
		traceHeader = r.Header.Get(trace.HeaderName)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"recommendations": "  Do two mediums first.  "}`))
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL+"/", time.Second, zap.NewNop())
	ctx := trace.WithContext(context.Background(), "trace-1")

	text, err := c.Advise(ctx, "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Do two mediums first.", text)
	assert.Equal(t, agentRequest{System: "sys", Prompt: "prompt"}, got)
	assert.Equal(t, "trace-1", traceHeader)
}

func TestAgentClient_RetriesOnceOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}]}`))
	}))
	defer srv.Close()

	text, err := NewAgentClient(srv.URL, time.Second, zap.NewNop()).Advise(context.Background(), "s", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAgentClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewAgentClient(srv.URL, time.Second, zap.NewNop()).Advise(context.Background(), "s", "p")
	assert.ErrorContains(t, err, "advisor service error: 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAgentClient_GivesUpAfterRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewAgentClient(srv.URL, time.Second, zap.NewNop()).Advise(context.Background(), "s", "p")
	assert.ErrorContains(t, err, "advisor service 5xx: 503")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExtractText(t *testing.T) {
	cases := map[string]string{
		`"plain"`:                        "plain",
		`{"text": "t"}`:                  "t",
		`{"recommendations": ["a","b"]}`: "a\nb",
		`{"choices":[{"message":{"content":"c"}}]}`: "c",
	}
	for raw, want := range cases {
		got, err := extractText([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := extractText([]byte(`{"other": 1}`))
	assert.ErrorIs(t, err, ErrEmptyReply)
	_, err = extractText([]byte(`{"text": "   "}`))
	assert.ErrorIs(t, err, ErrEmptyReply)
	_, err = extractText([]byte(`not json`))
	assert.Error(t, err)
}
