// Package main provides the subagent-stop hook entry point.
// This hook fires when a Task/subagent completes and reports an agent_completed event.
package main

import (
	"github.com/thebtf/agentpulse/pkg/hooks"
)

func main() {
	hooks.RunHook("subagent-stop", hooks.AgentCompleted)
}
