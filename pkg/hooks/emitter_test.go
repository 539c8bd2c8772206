package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/agentpulse/internal/config"
	"github.com/thebtf/agentpulse/pkg/events"
)

// serverConfig points a ServerConfig at an httptest server.
func serverConfig(t *testing.T, server *httptest.Server, timeout time.Duration) config.ServerConfig {
	t.Helper()

	var port int
	_, err := fmt.Sscanf(server.URL, "http://127.0.0.1:%d", &port)
	require.NoError(t, err)

	return config.ServerConfig{Host: "127.0.0.1", Port: port, Timeout: timeout}
}

// unusedPort returns a loopback port with nothing listening on it.
func unusedPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("stdin closed") }

func TestNewEmitter(t *testing.T) {
	e := NewEmitter(config.Default().Server)

	assert.Equal(t, "http://127.0.0.1:4000/api/events", e.URL())
	assert.Equal(t, 5*time.Second, e.Timeout())

	e = NewEmitter(config.ServerConfig{Host: "127.0.0.1", Port: 9000})
	assert.Equal(t, config.DefaultRequestTimeout, e.Timeout(), "zero timeout falls back to the default")
}

func TestEmit_Delivers(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	e := NewEmitter(serverConfig(t, server, time.Second))
	out := e.Emit(context.Background(), strings.NewReader(`{"session_id":"s1","agent_type":"Explore"}`), AgentSpawned)

	require.True(t, out.Sent(), "outcome: %+v", out)
	assert.Equal(t, StateSent, out.State)
	assert.Equal(t, ReasonNone, out.Reason)
	assert.Equal(t, http.StatusAccepted, out.StatusCode)

	require.NotNil(t, received)
	assert.Equal(t, out.EventID, received["id"])
	assert.Equal(t, "agent_spawned", received["type"])
	assert.Equal(t, "s1", received["session_id"])
	assert.Equal(t, "s1", received["parent_session_id"])
	assert.Equal(t, "Explore", received["agent_type"])
	assert.Equal(t, "unknown", received["model"])
	assert.Contains(t, received, "task_description")
	assert.Nil(t, received["task_description"])
}

func TestEmit_InvalidInputMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := NewEmitter(serverConfig(t, server, time.Second))

	inputs := map[string]io.Reader{
		"not json":     strings.NewReader("not json"),
		"empty":        strings.NewReader(""),
		"array":        strings.NewReader("[]"),
		"null":         strings.NewReader("null"),
		"read failure": errReader{},
	}

	for name, r := range inputs {
		t.Run(name, func(t *testing.T) {
			built := false
			out := e.Emit(context.Background(), r, func(in events.Input) events.Event {
				built = true
				return events.NewAgentSpawned(in)
			})

			assert.Equal(t, StateDropped, out.State)
			assert.Equal(t, ReasonInvalidInput, out.Reason)
			assert.Empty(t, out.EventID)
			assert.Error(t, out.Err)
			assert.False(t, built, "no event is built from invalid input")
		})
	}

	assert.Equal(t, int32(0), calls.Load(), "invalid input must never reach the network")
}

func TestEmit_TimeoutAborts(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	timeout := 200 * time.Millisecond
	e := NewEmitter(serverConfig(t, server, timeout))

	start := time.Now()
	out := e.Emit(context.Background(), strings.NewReader(`{}`), AgentSpawned)
	elapsed := time.Since(start)

	assert.Equal(t, StateDropped, out.State)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.NotEmpty(t, out.EventID, "event was built before the attempt")
	assert.Less(t, elapsed, timeout+2*time.Second)
	assert.GreaterOrEqual(t, elapsed, timeout)
}

func TestEmit_ConnectionRefused(t *testing.T) {
	e := NewEmitter(config.ServerConfig{Host: "127.0.0.1", Port: unusedPort(t), Timeout: time.Second})

	out := e.Emit(context.Background(), strings.NewReader(`{"session_id":"s1"}`), AgentSpawned)

	assert.Equal(t, StateDropped, out.State)
	assert.Equal(t, ReasonTransport, out.Reason)
	assert.Error(t, out.Err)
}

func TestEmit_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "bad request", status: http.StatusBadRequest},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "redirect without location", status: http.StatusMultipleChoices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			e := NewEmitter(serverConfig(t, server, time.Second))
			out := e.Emit(context.Background(), strings.NewReader(`{}`), AgentSpawned)

			assert.Equal(t, StateDropped, out.State)
			assert.Equal(t, ReasonRejected, out.Reason)
			assert.Equal(t, tt.status, out.StatusCode)
		})
	}
}

func TestEmit_ResponseBodyIgnored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	e := NewEmitter(serverConfig(t, server, time.Second))
	out := e.Emit(context.Background(), strings.NewReader(`{}`), AgentCompleted)

	assert.True(t, out.Sent())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "sent", StateSent.String())
	assert.Equal(t, "dropped", StateDropped.String())
}
