package runtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
)

const (
	pipelinePromptHeader     = "You are the planner of an agent runtime. Choose the actions that should run, in order, to handle the latest event."
	modificationPromptHeader = "You are reviewing a running pipeline. A step has just completed; decide whether the remaining steps should change."
)

// describePlugins lists every plugin and its actions.
func (r *Runtime) describePlugins() string {
	var b strings.Builder
	for _, p := range r.plugins.All() {
		fmt.Fprintf(&b, "- %s (%s): %s\n", p.ID(), p.Name(), p.Description())
		for _, e := range p.Executors() {
			fmt.Fprintf(&b, "  - action %q: %s\n", e.Name, e.Description)
		}
	}
	if b.Len() == 0 {
		return "(no plugins installed)\n"
	}
	return b.String()
}

func describeChain(agentCtx *core.AgentContext) string {
	raw, err := json.MarshalIndent(agentCtx.Chain(), "", "  ")
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func describeSteps(steps []core.PipelineStep) string {
	if len(steps) == 0 {
		return "(none)"
	}
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}

func (r *Runtime) pipelinePrompt(agentCtx *core.AgentContext) string {
	var b strings.Builder
	b.WriteString(pipelinePromptHeader)
	b.WriteString("\n\nAvailable plugins and actions:\n")
	b.WriteString(r.describePlugins())

	fmt.Fprintf(&b, "\nPlatform: %s\n", agentCtx.PlatformName())
	if in, ok := agentCtx.UserInput(); ok {
		fmt.Fprintf(&b, "User: %s\nMessage: %s\n", in.User, in.RawMessage)
		if len(in.MessageHistory) > 0 {
			b.WriteString("Recent conversation:\n")
			for _, m := range in.MessageHistory {
				fmt.Fprintf(&b, "  %s: %s\n", m.Role, m.Content)
			}
		}
	}

	b.WriteString("\nContext chain:\n")
	b.WriteString(describeChain(agentCtx))
	b.WriteString("\n\nReturn a JSON array of steps. Each step is an object with \"pluginId\" and \"action\" taken from the list above. ")
	b.WriteString("Return [] when nothing should be done.")
	return b.String()
}

func (r *Runtime) modificationPrompt(agentCtx *core.AgentContext, pipeline core.Pipeline, index int) string {
	var b strings.Builder
	b.WriteString(modificationPromptHeader)
	fmt.Fprintf(&b, "\n\nStep just executed: %s\n", pipeline[index].String())
	fmt.Fprintf(&b, "Steps already executed: %s\n", describeSteps(pipeline[:index+1]))
	fmt.Fprintf(&b, "Steps still planned: %s\n", describeSteps(pipeline[index+1:]))

	b.WriteString("\nAvailable plugins and actions:\n")
	b.WriteString(r.describePlugins())
	b.WriteString("\nContext chain:\n")
	b.WriteString(describeChain(agentCtx))

	b.WriteString("\n\nFirst identify the steps already executed from the context chain, then the steps still planned. ")
	b.WriteString("Set shouldModify to false when the planned steps still fit. ")
	b.WriteString("When true, modifiedSteps replaces every step after the one just executed. ")
	b.WriteString("Never propose a step that was already executed or is already planned; such a proposal is discarded.")
	return b.String()
}
