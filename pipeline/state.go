package pipeline

import (
	"errors"
	"time"
)

// DefaultTopic is the topic pre-filled for a new session.
const DefaultTopic = "Latest advancements in AI"

// Stage is one of the three sequential pipeline steps.
type Stage int

const (
	StageResearch Stage = iota
	StageWrite
	StageReview
)

var stages = []Stage{StageResearch, StageWrite, StageReview}

func (s Stage) String() string {
	switch s {
	case StageResearch:
		return "research"
	case StageWrite:
		return "write"
	case StageReview:
		return "review"
	default:
		return "unknown"
	}
}

// Status is the controller state derived from the completion flags.
type Status int

const (
	Idle Status = iota
	Researching
	Writing
	Reviewing
	Done
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Researching:
		return "researching"
	case Writing:
		return "writing"
	case Reviewing:
		return "reviewing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// State is everything one session knows about its pipeline run. Only the
// Controller mutates it.
type State struct {
	APIKey string
	Topic  string

	// Started is set once the crew has been assembled.
	Started bool

	ResearchDone  bool
	ReportWritten bool
	ReviewDone    bool

	ResearchOutput string
	ReportOutput   string
	ReviewOutput   string

	ResearchAt time.Time
	ReportAt   time.Time
	ReviewAt   time.Time

	// LastError is the message of the most recent failed stage; cleared when
	// that stage later succeeds.
	LastError   string
	FailedStage Stage
}

// NewState returns the state of a fresh session.
func NewState(topic string) *State {
	if topic == "" {
		topic = DefaultTopic
	}
	return &State{Topic: topic}
}

// Status derives the controller state from the completion flags.
func (s *State) Status() Status {
	switch {
	case s.ReviewDone:
		return Done
	case s.ReportWritten:
		return Reviewing
	case s.ResearchDone:
		return Writing
	case s.Started:
		return Researching
	default:
		return Idle
	}
}

// Next returns the first stage whose flag is not yet set.
func (s *State) Next() (Stage, bool) {
	for _, st := range stages {
		if !s.Completed(st) {
			return st, true
		}
	}
	return 0, false
}

// Completed reports whether the flag of stage st is set.
func (s *State) Completed(st Stage) bool {
	switch st {
	case StageResearch:
		return s.ResearchDone
	case StageWrite:
		return s.ReportWritten
	case StageReview:
		return s.ReviewDone
	}
	return false
}

// Failed reports whether the pending stage's last attempt errored.
func (s *State) Failed(st Stage) bool {
	return s.LastError != "" && s.FailedStage == st && !s.Completed(st)
}

// Check verifies the flag ordering invariant.
func (s *State) Check() error {
	if s.ReportWritten && !s.ResearchDone {
		return errors.New("report written before research finished")
	}
	if s.ReviewDone && !s.ReportWritten {
		return errors.New("review finished before report was written")
	}
	if s.ResearchDone && !s.Started {
		return errors.New("research finished in a session that never started")
	}
	return nil
}

func (s *State) complete(st Stage, text string, at time.Time) {
	switch st {
	case StageResearch:
		s.ResearchOutput, s.ResearchDone, s.ResearchAt = text, true, at
	case StageWrite:
		s.ReportOutput, s.ReportWritten, s.ReportAt = text, true, at
	case StageReview:
		s.ReviewOutput, s.ReviewDone, s.ReviewAt = text, true, at
	}
	if s.FailedStage == st {
		s.LastError = ""
	}
}

// clear drops every flag and output but keeps the inputs.
func (s *State) clear() {
	*s = State{APIKey: s.APIKey, Topic: s.Topic}
}
