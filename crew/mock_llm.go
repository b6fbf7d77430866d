package crew

import (
	"context"
	"strings"
)

// MockLLM answers without calling a model; used by the "mock" provider and tests.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(firstLine(prompt.System))
	sb.WriteString("\n\n")
	sb.WriteString("Offline response generated for the following assignment:\n\n")
	sb.WriteString("```\n")
	sb.WriteString(prompt.User)
	sb.WriteString("\n```\n")
	return sb.String(), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
