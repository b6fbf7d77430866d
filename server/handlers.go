package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"crew_research_assistant/pipeline"
)

const (
	msgMissingKey   = "Please enter your OpenAI API key first."
	msgMissingTopic = "Please enter a research topic."
	msgBusy         = "A stage is already running for this session."
)

// --- Form handlers ---

func (s *Server) handleStartForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess := s.session(w, r)
	ran, err := s.start(r, sess, r.PostForm.Get("api_key"), r.PostForm.Get("topic"))
	switch {
	case !ran:
		sess.setFlash("warning", msgBusy)
	case err != nil:
		sess.setFlash("error", userMessage(err))
	default:
		sess.setFlash("success", "Research crew has been assembled!")
	}
	http.Redirect(w, r, "/?tab=process", http.StatusSeeOther)
}

func (s *Server) handleResetForm(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	ran, err := sess.Do(func(st *pipeline.State) error {
		return s.ctrl.Dispatch(r.Context(), st, pipeline.Reset{})
	})
	switch {
	case !ran:
		sess.setFlash("warning", msgBusy)
	case err != nil:
		sess.setFlash("error", userMessage(err))
	}
	http.Redirect(w, r, "/?tab=process", http.StatusSeeOther)
}

// start dispatches a Start event. A blank credential field falls back to the
// key already held by the session, since the masked field is never echoed.
func (s *Server) start(r *http.Request, sess *Session, apiKey, topic string) (bool, error) {
	return sess.Do(func(st *pipeline.State) error {
		key := strings.TrimSpace(apiKey)
		if key == "" {
			key = st.APIKey
		}
		return s.ctrl.Dispatch(r.Context(), st, pipeline.Start{APIKey: key, Topic: topic})
	})
}

// --- API handlers ---

type startReq struct {
	APIKey string `json:"api_key"`
	Topic  string `json:"topic"`
}

type sessionResp struct {
	SessionID      string     `json:"session_id"`
	Status         string     `json:"status"`
	Topic          string     `json:"topic"`
	HasAPIKey      bool       `json:"has_api_key"`
	Busy           bool       `json:"busy"`
	Started        bool       `json:"started"`
	ResearchDone   bool       `json:"research_done"`
	ReportWritten  bool       `json:"report_written"`
	ReviewDone     bool       `json:"review_done"`
	ResearchOutput string     `json:"research_output"`
	ReportOutput   string     `json:"report_output"`
	ReviewOutput   string     `json:"review_output"`
	ResearchAt     *time.Time `json:"research_at,omitempty"`
	ReportAt       *time.Time `json:"report_at,omitempty"`
	ReviewAt       *time.Time `json:"review_at,omitempty"`
	Error          string     `json:"error,omitempty"`
	FailedStage    string     `json:"failed_stage,omitempty"`
}

func newSessionResp(sess *Session) sessionResp {
	st := sess.Snapshot()
	resp := sessionResp{
		SessionID:      sess.ID,
		Status:         st.Status().String(),
		Topic:          st.Topic,
		HasAPIKey:      st.APIKey != "",
		Busy:           sess.Busy(),
		Started:        st.Started,
		ResearchDone:   st.ResearchDone,
		ReportWritten:  st.ReportWritten,
		ReviewDone:     st.ReviewDone,
		ResearchOutput: st.ResearchOutput,
		ReportOutput:   st.ReportOutput,
		ReviewOutput:   st.ReviewOutput,
		ResearchAt:     timePtr(st.ResearchAt),
		ReportAt:       timePtr(st.ReportAt),
		ReviewAt:       timePtr(st.ReviewAt),
	}
	if st.LastError != "" {
		resp.Error = st.LastError
		resp.FailedStage = st.FailedStage.String()
	}
	return resp
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, newSessionResp(s.session(w, r)))
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess := s.session(w, r)
	ran, err := s.start(r, sess, req.APIKey, req.Topic)
	s.respond(w, sess, ran, err)
}

func (s *Server) handleSessionAdvance(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	ran, err := sess.Do(func(st *pipeline.State) error {
		return s.ctrl.Dispatch(r.Context(), st, pipeline.Advance{})
	})
	s.respond(w, sess, ran, err)
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	ran, err := sess.Do(func(st *pipeline.State) error {
		return s.ctrl.Dispatch(r.Context(), st, pipeline.Reset{})
	})
	s.respond(w, sess, ran, err)
}

func (s *Server) respond(w http.ResponseWriter, sess *Session, ran bool, err error) {
	if !ran {
		http.Error(w, msgBusy, http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, userMessage(err), statusFor(err))
		return
	}
	writeJSON(w, newSessionResp(sess))
}

// --- Helpers ---

func userMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrMissingCredential):
		return msgMissingKey
	case errors.Is(err, pipeline.ErrMissingTopic):
		return msgMissingTopic
	default:
		return err.Error()
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrMissingCredential), errors.Is(err, pipeline.ErrMissingTopic):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrInvalidTransition), errors.Is(err, pipeline.ErrNotStarted):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
