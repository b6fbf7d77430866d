package crew

import (
	"fmt"
	"strings"
)

// Prompt is the message set sent to the model.
type Prompt struct {
	System  string
	User    string
	History []Message
}

// Message is one earlier turn placed between the system and user messages.
type Message struct {
	Role    string
	Content string
}

// BuildTaskPrompt renders the persona of the task's agent as the system message
// and the assignment as the user message. contextText is the output of the
// previous task in the crew; when present it is sent as an earlier user turn.
func BuildTaskPrompt(task Task, contextText string) Prompt {
	agent := task.Agent

	var sys strings.Builder
	sys.WriteString(fmt.Sprintf("You are %s.", agent.Role))
	if agent.Description != "" {
		sys.WriteString(" ")
		sys.WriteString(agent.Description)
	}
	sys.WriteString("\n")
	if agent.Backstory != "" {
		sys.WriteString(agent.Backstory)
		sys.WriteString("\n")
	}
	sys.WriteString(fmt.Sprintf("Your personal goal is: %s\n", agent.Goal))
	sys.WriteString("Answer in Markdown. Do not add commentary about yourself or the task.")

	var user strings.Builder
	user.WriteString(fmt.Sprintf("Current Task: %s\n\n", task.Description))
	if task.ExpectedOutput != "" {
		user.WriteString(fmt.Sprintf("This is the expected criteria for your final answer: %s\n", task.ExpectedOutput))
	}
	user.WriteString("You MUST return the actual complete content as the final answer, not a summary.")

	p := Prompt{
		System: sys.String(),
		User:   user.String(),
	}
	if strings.TrimSpace(contextText) != "" {
		p.History = []Message{{
			Role:    "user",
			Content: "This is the context you're working with:\n" + contextText,
		}}
	}
	return p
}
