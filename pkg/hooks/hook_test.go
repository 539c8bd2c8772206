package hooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/thebtf/agentpulse/internal/logging"
)

func TestRun_LogsOutcome(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logging.SetupWriter(&buf, "warn", zerolog.WarnLevel)

	e := NewEmitter(serverConfig(t, server, time.Second))
	out := Run(context.Background(), "subagent-start", e, strings.NewReader(`{"session_id":"s1"}`), AgentSpawned)

	assert.Equal(t, ReasonRejected, out.Reason)
	assert.Contains(t, buf.String(), "hook=subagent-start")
	assert.Contains(t, buf.String(), "reason=rejected")
	assert.Contains(t, buf.String(), out.EventID)
}

func TestRun_InvalidInputIsQuietAtWarn(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logging.SetupWriter(&buf, "warn", zerolog.WarnLevel)

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	e := NewEmitter(serverConfig(t, server, time.Second))
	out := Run(context.Background(), "subagent-start", e, strings.NewReader("not json"), AgentSpawned)

	assert.Equal(t, ReasonInvalidInput, out.Reason)
	assert.Empty(t, buf.String())
}

func TestBuilders(t *testing.T) {
	assert.Equal(t, "agent_spawned", string(AgentSpawned(nil).EventType()))
	assert.Equal(t, "agent_completed", string(AgentCompleted(nil).EventType()))
}
