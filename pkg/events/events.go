// Package events defines the lifecycle event records emitted by agentpulse hooks.
package events

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	TypeAgentSpawned   Type = "agent_spawned"
	TypeAgentCompleted Type = "agent_completed"
)

// Unknown is the sentinel substituted for absent string fields.
const Unknown = "unknown"

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrNotObject is returned by ParseInput when the payload is valid JSON but not an object.
var ErrNotObject = errors.New("input is not a JSON object")

// Event is implemented by every lifecycle record.
type Event interface {
	EventID() string
	EventType() Type
}

// Input is a decoded hook payload. Values are untrusted.
type Input map[string]any

// ParseInput decodes a hook payload. Anything other than a JSON object is rejected.
func ParseInput(data []byte) (Input, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Input(obj), nil
}

// String returns the value at key when it is a string. The empty string is a
// value. Missing keys and nulls are absent, and so are non-string values.
func (in Input) String(key string) (string, bool) {
	s, ok := in[key].(string)
	return s, ok
}

// StringOr returns the string at key, or def when absent.
func (in Input) StringOr(key, def string) string {
	if s, ok := in.String(key); ok {
		return s
	}
	return def
}

// StringPtr returns the string at key, or nil when absent.
func (in Input) StringPtr(key string) *string {
	if s, ok := in.String(key); ok {
		return &s
	}
	return nil
}

// Bool returns the boolean at key; anything else is false.
func (in Input) Bool(key string) bool {
	b, _ := in[key].(bool)
	return b
}

// AgentSpawnedEvent is emitted when a sub-agent is spawned.
// Every field is always serialized; nil pointers encode as null.
type AgentSpawnedEvent struct {
	ID              string  `json:"id"`
	Type            Type    `json:"type"`
	Timestamp       string  `json:"timestamp"`
	SessionID       string  `json:"session_id"`
	AgentID         string  `json:"agent_id"`
	ParentSessionID *string `json:"parent_session_id"`
	AgentType       string  `json:"agent_type"`
	Model           string  `json:"model"`
	TaskDescription *string `json:"task_description"`
}

func (e AgentSpawnedEvent) EventID() string { return e.ID }
func (e AgentSpawnedEvent) EventType() Type { return e.Type }

// NewAgentSpawned normalizes a hook payload into an AgentSpawnedEvent.
func NewAgentSpawned(in Input) AgentSpawnedEvent {
	// parent_session_id falls back to session_id before going null
	parent := in.StringPtr("parent_session_id")
	if parent == nil {
		parent = in.StringPtr("session_id")
	}

	return AgentSpawnedEvent{
		ID:              NewID(),
		Type:            TypeAgentSpawned,
		Timestamp:       Now(),
		SessionID:       in.StringOr("session_id", Unknown),
		AgentID:         in.agentID(),
		ParentSessionID: parent,
		AgentType:       in.StringOr("agent_type", Unknown),
		Model:           in.StringOr("model", Unknown),
		TaskDescription: in.StringPtr("task_description"),
	}
}

// AgentCompletedEvent is emitted when a sub-agent stops.
type AgentCompletedEvent struct {
	ID             string `json:"id"`
	Type           Type   `json:"type"`
	Timestamp      string `json:"timestamp"`
	SessionID      string `json:"session_id"`
	AgentID        string `json:"agent_id"`
	AgentType      string `json:"agent_type"`
	StopHookActive bool   `json:"stop_hook_active"`
}

func (e AgentCompletedEvent) EventID() string { return e.ID }
func (e AgentCompletedEvent) EventType() Type { return e.Type }

// NewAgentCompleted normalizes a stop hook payload into an AgentCompletedEvent.
func NewAgentCompleted(in Input) AgentCompletedEvent {
	return AgentCompletedEvent{
		ID:             NewID(),
		Type:           TypeAgentCompleted,
		Timestamp:      Now(),
		SessionID:      in.StringOr("session_id", Unknown),
		AgentID:        in.agentID(),
		AgentType:      in.StringOr("agent_type", Unknown),
		StopHookActive: in.Bool("stop_hook_active"),
	}
}

func (in Input) agentID() string {
	if id, ok := in.String("agent_id"); ok {
		return id
	}
	return NewID()
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time formatted with TimestampFormat.
func Now() string {
	return time.Now().UTC().Format(TimestampFormat)
}
