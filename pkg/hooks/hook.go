package hooks

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/agentpulse/internal/config"
	"github.com/thebtf/agentpulse/internal/logging"
	"github.com/thebtf/agentpulse/pkg/events"
)

// Version is set at build time via ldflags
var Version = "dev"

// AgentSpawned builds the event for the subagent-start hook.
func AgentSpawned(in events.Input) events.Event { return events.NewAgentSpawned(in) }

// AgentCompleted builds the event for the subagent-stop hook.
func AgentCompleted(in events.Input) events.Event { return events.NewAgentCompleted(in) }

// RunHook is the entry point of every hook binary. Configuration is resolved
// once here and the event is emitted from stdin. It always returns normally so
// the process exits 0 whatever happened to the event.
func RunHook(name string, build Builder) {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, zerolog.WarnLevel)

	Run(context.Background(), name, NewEmitter(cfg.Server), os.Stdin, build)
}

// Run emits one event and logs the outcome.
func Run(ctx context.Context, name string, emitter *Emitter, stdin io.Reader, build Builder) Outcome {
	out := emitter.Emit(ctx, stdin, build)

	var evt *zerolog.Event
	switch {
	case out.Sent():
		evt = log.Debug()
	case out.Reason == ReasonInvalidInput:
		evt = log.Debug()
	default:
		evt = log.Warn()
	}

	evt.Str("hook", name).
		Str("version", Version).
		Str("state", out.State.String()).
		Str("reason", string(out.Reason)).
		Str("event_id", out.EventID).
		Int("status", out.StatusCode).
		Err(out.Err).
		Msg("event emission finished")

	return out
}
