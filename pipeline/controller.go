package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crew_research_assistant/metrics"
)

var (
	ErrMissingCredential = errors.New("api key is required")
	ErrMissingTopic      = errors.New("research topic is required")
	ErrNotStarted        = errors.New("research process has not been started")
	ErrInvalidTransition = errors.New("invalid pipeline transition")
)

// Event is an input to Controller.Dispatch.
type Event interface {
	event()
}

// Start assembles the crew and runs every pending stage.
type Start struct {
	APIKey string
	Topic  string
}

// Advance runs only the next pending stage.
type Advance struct{}

// Reset returns a finished session to Idle.
type Reset struct{}

func (Start) event()   {}
func (Advance) event() {}
func (Reset) event()   {}

type Config struct {
	Invoker Invoker
	Logger  *slog.Logger
	// StageTimeout bounds a single stage call; zero means no limit.
	StageTimeout time.Duration
}

// Controller drives State through Idle -> Researching -> Writing ->
// Reviewing -> Done.
type Controller struct {
	invoker Invoker
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Invoker == nil {
		return nil, errors.New("invoker required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		invoker: cfg.Invoker,
		log:     log,
		timeout: cfg.StageTimeout,
		now:     time.Now,
	}, nil
}

func (c *Controller) Dispatch(ctx context.Context, s *State, ev Event) error {
	switch e := ev.(type) {
	case Start:
		return c.start(ctx, s, e)
	case Advance:
		return c.advance(ctx, s)
	case Reset:
		return c.reset(s)
	default:
		return fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
}

func (c *Controller) start(ctx context.Context, s *State, e Start) error {
	apiKey := strings.TrimSpace(e.APIKey)
	if apiKey == "" {
		return ErrMissingCredential
	}
	topic := strings.TrimSpace(e.Topic)
	if topic == "" {
		return ErrMissingTopic
	}
	if s.Status() == Done {
		return nil
	}

	s.APIKey = apiKey
	s.Topic = topic
	if !s.Started {
		s.Started = true
		c.log.Info("research crew assembled", "topic", topic)
	}

	for {
		st, ok := s.Next()
		if !ok {
			return nil
		}
		if err := c.run(ctx, s, st); err != nil {
			return err
		}
	}
}

func (c *Controller) advance(ctx context.Context, s *State) error {
	if !s.Started {
		return ErrNotStarted
	}
	st, ok := s.Next()
	if !ok {
		return nil
	}
	return c.run(ctx, s, st)
}

func (c *Controller) reset(s *State) error {
	if s.Status() != Done {
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, s.Status())
	}
	s.clear()
	c.log.Info("pipeline reset", "topic", s.Topic)
	return nil
}

func (c *Controller) run(ctx context.Context, s *State, st Stage) error {
	req := BuildRequest(st, s)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.log.Debug("stage starting", "stage", st, "topic", s.Topic)
	start := c.now()
	text, err := c.invoker.Invoke(ctx, s.APIKey, req)
	elapsed := c.now().Sub(start)
	metrics.ObserveStage(st.String(), elapsed, err)
	if err != nil {
		s.LastError = err.Error()
		s.FailedStage = st
		c.log.Error("stage failed", "stage", st, "duration", elapsed, "error", err)
		return fmt.Errorf("%s stage: %w", st, err)
	}

	s.complete(st, text, c.now())
	c.log.Info("stage completed", "stage", st, "duration", elapsed, "chars", len(text))
	return nil
}
