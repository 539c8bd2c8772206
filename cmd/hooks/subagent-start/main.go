// Package main provides the subagent-start hook entry point.
// This hook fires when a Task/subagent is spawned and reports an agent_spawned
// event to the visualization server. It never fails the spawn.
package main

import (
	"github.com/thebtf/agentpulse/pkg/hooks"
)

func main() {
	hooks.RunHook("subagent-start", hooks.AgentSpawned)
}
