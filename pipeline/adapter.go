package pipeline

import (
	"context"
	"errors"
	"fmt"

	"crew_research_assistant/crew"
)

// Invoker runs one stage request against the agent framework and returns its
// text. Implementations make exactly one blocking call.
type Invoker interface {
	Invoke(ctx context.Context, apiKey string, req Request) (string, error)
}

// CrewInvoker assembles a one-agent, one-task crew per call.
type CrewInvoker struct {
	newClient crew.ClientFactory
}

func NewCrewInvoker(factory crew.ClientFactory) (*CrewInvoker, error) {
	if factory == nil {
		return nil, errors.New("llm client factory required")
	}
	return &CrewInvoker{newClient: factory}, nil
}

func (c *CrewInvoker) Invoke(ctx context.Context, apiKey string, req Request) (string, error) {
	llm, err := c.newClient(apiKey)
	if err != nil {
		return "", fmt.Errorf("creating llm client: %w", err)
	}

	agent := &crew.Agent{
		Name:        req.AgentName,
		Role:        req.Role,
		Goal:        req.Goal,
		Backstory:   req.Backstory,
		Description: req.Description,
	}
	task := &crew.Task{
		Name:           req.TaskName,
		Description:    req.Task,
		ExpectedOutput: req.ExpectedOutput,
		Agent:          agent,
	}
	team, err := crew.New(llm, []*crew.Agent{agent}, []*crew.Task{task})
	if err != nil {
		return "", err
	}
	out, err := team.Kickoff(ctx)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
