package pipeline

import "fmt"

// Request is what the adapter needs to run one stage: a single agent and a
// single task.
type Request struct {
	Stage Stage

	AgentName   string
	Role        string
	Description string
	Goal        string
	Backstory   string

	TaskName       string
	Task           string
	ExpectedOutput string
}

// BuildRequest constructs the role and task prompt for stage st from the
// topic and the output of the preceding stage.
func BuildRequest(st Stage, s *State) Request {
	topic := s.Topic
	switch st {
	case StageResearch:
		return Request{
			Stage:          st,
			AgentName:      "Researcher",
			Role:           "Researcher",
			Description:    fmt.Sprintf("An AI agent that researches and gathers information on %s.", topic),
			Goal:           fmt.Sprintf("Find relevant information on %s.", topic),
			Backstory:      "An AI assistant designed for research tasks.",
			TaskName:       "Gather Information",
			Task:           fmt.Sprintf("Find the latest information on %s and summarize key findings.", topic),
			ExpectedOutput: fmt.Sprintf("A summary of key findings about %s.", topic),
		}
	case StageWrite:
		return Request{
			Stage:          st,
			AgentName:      "Writer",
			Role:           "Writer",
			Description:    "An AI agent that writes research reports.",
			Goal:           fmt.Sprintf("Create a structured report on %s from gathered research data.", topic),
			Backstory:      "An AI assistant designed for writing reports.",
			TaskName:       "Write Research Report",
			Task:           fmt.Sprintf("Use the following research to create a structured report on %s: %s", topic, s.ResearchOutput),
			ExpectedOutput: fmt.Sprintf("A structured research report on %s.", topic),
		}
	default:
		return Request{
			Stage:          StageReview,
			AgentName:      "Reviewer",
			Role:           "Reviewer",
			Description:    "An AI agent that reviews and refines reports.",
			Goal:           "Ensure clarity, grammar, and accuracy in written content.",
			Backstory:      "An AI assistant designed for reviewing reports.",
			TaskName:       "Review Report",
			Task:           fmt.Sprintf("Review the following report on %s for accuracy and clarity: %s", topic, s.ReportOutput),
			ExpectedOutput: fmt.Sprintf("A reviewed and refined research report on %s.", topic),
		}
	}
}
