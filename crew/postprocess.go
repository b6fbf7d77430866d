package crew

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyOutput is returned when the model produced nothing usable.
var ErrEmptyOutput = errors.New("model returned empty output")

var (
	titleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	fenceRe = regexp.MustCompile("(?s)^```[A-Za-z]*\\n(.*)\\n```$")
)

// Normalize turns a raw completion into the plain text stored for a task.
func Normalize(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(text); len(m) == 2 && !strings.Contains(m[1], "```") {
		text = strings.TrimSpace(m[1])
	}
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// ExtractTitle returns the first level-one heading, or "".
func ExtractTitle(md string) string {
	m := titleRe.FindStringSubmatch(md)
	if len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
