package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"crew_research_assistant/crew"
	"crew_research_assistant/pipeline"
)

type stageView struct {
	Agent string
	Label string
	Class string
}

type pageView struct {
	Tab     string
	Topic   string
	HasKey  bool
	Flash   flash
	Busy    bool
	Started bool
	Done    bool
	Stages  []stageView

	State       pipeline.State
	ReportTitle string
	About       template.HTML
}

var stageLabels = map[pipeline.Stage]struct {
	agent, done, running, waiting string
}{
	pipeline.StageResearch: {"Researcher Agent", "Research completed ✅", "Researching...", "Not started"},
	pipeline.StageWrite:    {"Writer Agent", "Report written ✅", "Writing report...", "Waiting for research to complete..."},
	pipeline.StageReview:   {"Reviewer Agent", "Review completed ✅", "Reviewing report...", "Waiting for report to be written..."},
}

func buildView(tab string, st pipeline.State, busy bool, f flash) pageView {
	switch tab {
	case "results", "about":
	default:
		tab = "process"
	}
	v := pageView{
		Tab:     tab,
		Topic:   st.Topic,
		HasKey:  st.APIKey != "",
		Flash:   f,
		Busy:    busy,
		Started: st.Started,
		Done:    st.Status() == pipeline.Done,
		State:   st,
	}
	if st.ReviewDone {
		v.ReportTitle = crew.ExtractTitle(st.ReviewOutput)
	}
	next, pending := st.Next()
	for _, stage := range []pipeline.Stage{pipeline.StageResearch, pipeline.StageWrite, pipeline.StageReview} {
		l := stageLabels[stage]
		sv := stageView{Agent: l.agent, Label: l.waiting, Class: "waiting"}
		switch {
		case st.Completed(stage):
			sv.Label, sv.Class = l.done, "success"
		case st.Failed(stage):
			sv.Label, sv.Class = "Failed: "+st.LastError, "error"
		case busy && pending && next == stage:
			sv.Label, sv.Class = l.running, "running"
		}
		v.Stages = append(v.Stages, sv)
	}
	return v
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

func (s *Server) renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	// goldmark drops raw HTML unless html.WithUnsafe is set.
	return template.HTML(buf.String())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	v := buildView(r.URL.Query().Get("tab"), sess.Snapshot(), sess.Busy(), sess.takeFlash())
	v.About = s.about

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, v); err != nil {
		s.log.Error("rendering page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
