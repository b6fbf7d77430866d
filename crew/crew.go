package crew

import (
	"context"
	"errors"
	"fmt"
)

// Crew runs its tasks in order; each task sees the previous task's output.
type Crew struct {
	Agents []*Agent
	Tasks  []*Task

	llm LLMClient
}

func New(llm LLMClient, agents []*Agent, tasks []*Task) (*Crew, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if len(tasks) == 0 {
		return nil, errors.New("crew needs at least one task")
	}
	for _, t := range tasks {
		if t == nil {
			return nil, errors.New("nil task")
		}
		if t.Agent == nil {
			return nil, fmt.Errorf("task %q has no agent", t.Name)
		}
		if !member(agents, t.Agent) {
			return nil, fmt.Errorf("task %q is assigned to agent %q outside the crew", t.Name, t.Agent.Name)
		}
	}
	return &Crew{Agents: agents, Tasks: tasks, llm: llm}, nil
}

// Kickoff executes every task synchronously and returns the final text.
func (c *Crew) Kickoff(ctx context.Context) (Output, error) {
	var prev string
	for _, t := range c.Tasks {
		raw, err := c.llm.Complete(ctx, BuildTaskPrompt(*t, prev))
		if err != nil {
			return Output{}, fmt.Errorf("task %q: %w", t.Name, err)
		}
		// The stored text is normalized (trimmed, outer fence removed), not the
		// raw completion.
		text, err := Normalize(raw)
		if err != nil {
			return Output{}, fmt.Errorf("task %q: %w", t.Name, err)
		}
		prev = text
	}
	return Output{Raw: prev}, nil
}

func member(agents []*Agent, a *Agent) bool {
	for _, x := range agents {
		if x == a {
			return true
		}
	}
	return false
}
