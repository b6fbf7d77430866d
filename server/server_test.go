package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crew_research_assistant/crew"
	"crew_research_assistant/pipeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, inv pipeline.Invoker) (*httptest.Server, *http.Client) {
	t.Helper()
	if inv == nil {
		var err error
		inv, err = pipeline.NewCrewInvoker(func(string) (crew.LLMClient, error) { return crew.MockLLM{}, nil })
		require.NoError(t, err)
	}
	ctrl, err := pipeline.NewController(pipeline.Config{Invoker: inv, Logger: quietLogger()})
	require.NoError(t, err)
	srv, err := New(Config{
		Controller:   ctrl,
		Logger:       quietLogger(),
		DefaultTopic: pipeline.DefaultTopic,
		SessionTTL:   time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}
	return ts, client
}

func postJSON(t *testing.T, c *http.Client, u, body string) *http.Response {
	t.Helper()
	resp, err := c.Post(u, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) sessionResp {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out sessionResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestAPIFullRunAndDownload(t *testing.T) {
	ts, c := newTestServer(t, nil)

	resp, err := c.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	initial := decodeSession(t, resp)
	assert.Equal(t, "idle", initial.Status)
	assert.Equal(t, pipeline.DefaultTopic, initial.Topic)
	assert.NotEmpty(t, initial.SessionID)

	st := decodeSession(t, postJSON(t, c, ts.URL+"/api/session/start", `{"api_key":"sk-test","topic":"Latest advancements in AI"}`))
	assert.Equal(t, initial.SessionID, st.SessionID)
	assert.Equal(t, "done", st.Status)
	assert.True(t, st.HasAPIKey)
	assert.NotEmpty(t, st.ResearchOutput)
	assert.NotEmpty(t, st.ReportOutput)
	assert.NotEmpty(t, st.ReviewOutput)
	require.NotNil(t, st.ResearchAt)
	require.NotNil(t, st.ReviewAt)
	assert.False(t, st.ResearchAt.After(*st.ReviewAt))

	resp, err = c.Get(ts.URL + "/download")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/markdown", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="research_report.md"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, st.ReviewOutput, readBody(t, resp))
}

func TestAPIMissingCredential(t *testing.T) {
	ts, c := newTestServer(t, nil)

	resp := postJSON(t, c, ts.URL+"/api/session/start", `{"api_key":"","topic":"Go"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Please enter your OpenAI API key first.")

	resp, err := c.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	st := decodeSession(t, resp)
	assert.Equal(t, "idle", st.Status)
	assert.False(t, st.Started)

	resp, err = c.Get(ts.URL + "/download")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = readBody(t, resp)
}

func TestAPIReset(t *testing.T) {
	ts, c := newTestServer(t, nil)

	resp := postJSON(t, c, ts.URL+"/api/session/reset", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = readBody(t, resp)

	_ = decodeSession(t, postJSON(t, c, ts.URL+"/api/session/start", `{"api_key":"sk-test","topic":"Databases"}`))
	st := decodeSession(t, postJSON(t, c, ts.URL+"/api/session/reset", ""))

	assert.Equal(t, "idle", st.Status)
	assert.False(t, st.ResearchDone)
	assert.False(t, st.ReportWritten)
	assert.False(t, st.ReviewDone)
	assert.Empty(t, st.ResearchOutput)
	assert.Empty(t, st.ReportOutput)
	assert.Empty(t, st.ReviewOutput)
	assert.Equal(t, "Databases", st.Topic)
	assert.True(t, st.HasAPIKey)

	// the stored key is reused when the field is left blank
	st = decodeSession(t, postJSON(t, c, ts.URL+"/api/session/start", `{"topic":"Databases"}`))
	assert.Equal(t, "done", st.Status)
}

type failingInvoker struct{ err error }

func (f failingInvoker) Invoke(context.Context, string, pipeline.Request) (string, error) {
	return "", f.err
}

func TestAPIStageFailure(t *testing.T) {
	ts, c := newTestServer(t, failingInvoker{err: errors.New("401 invalid api key")})

	resp := postJSON(t, c, ts.URL+"/api/session/start", `{"api_key":"sk-bad","topic":"Go"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "research stage: 401 invalid api key")

	resp, err := c.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	st := decodeSession(t, resp)
	assert.Equal(t, "researching", st.Status)
	assert.Equal(t, "research", st.FailedStage)
	assert.Equal(t, "401 invalid api key", st.Error)
}

type blockingInvoker struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingInvoker) Invoke(ctx context.Context, _ string, req pipeline.Request) (string, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return req.TaskName + " done", nil
}

func TestAPIBusySession(t *testing.T) {
	inv := &blockingInvoker{entered: make(chan struct{}, 1), release: make(chan struct{})}
	ts, c := newTestServer(t, inv)

	// create the session first so both requests share the cookie
	resp, err := c.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	_ = decodeSession(t, resp)

	done := make(chan *http.Response, 1)
	go func() {
		r, err := c.Post(ts.URL+"/api/session/start", "application/json", strings.NewReader(`{"api_key":"k","topic":"t"}`))
		if err == nil {
			done <- r
		}
		close(done)
	}()
	<-inv.entered

	resp = postJSON(t, c, ts.URL+"/api/session/advance", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = readBody(t, resp)

	resp, err = c.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	st := decodeSession(t, resp)
	assert.True(t, st.Busy)
	assert.Equal(t, "idle", st.Status)

	close(inv.release)
	r, ok := <-done
	require.True(t, ok)
	st = decodeSession(t, r)
	assert.Equal(t, "done", st.Status)
	assert.False(t, st.Busy)
}

func TestFormFlow(t *testing.T) {
	ts, c := newTestServer(t, nil)

	resp, err := c.Get(ts.URL + "/")
	require.NoError(t, err)
	page := readBody(t, resp)
	assert.Contains(t, page, `value="Latest advancements in AI"`)
	assert.Contains(t, page, "Start Research Process")
	assert.NotContains(t, page, "Current Status:")

	resp, err = c.PostForm(ts.URL+"/start", url.Values{"api_key": {""}, "topic": {"Go"}})
	require.NoError(t, err)
	page = readBody(t, resp)
	assert.Contains(t, page, "Please enter your OpenAI API key first.")
	assert.NotContains(t, page, "Current Status:")

	resp, err = c.PostForm(ts.URL+"/start", url.Values{"api_key": {"sk-test"}, "topic": {"Go"}})
	require.NoError(t, err)
	page = readBody(t, resp)
	assert.Contains(t, page, "Research crew has been assembled!")
	assert.Contains(t, page, "Research completed ✅")
	assert.Contains(t, page, "Report written ✅")
	assert.Contains(t, page, "Review completed ✅")
	assert.Contains(t, page, "Start New Research")
	assert.NotContains(t, page, "sk-test")

	resp, err = c.Get(ts.URL + "/?tab=results")
	require.NoError(t, err)
	page = readBody(t, resp)
	assert.Contains(t, page, "Research Findings")
	// the mock model titles its answer after the agent persona
	assert.Contains(t, page, "Final Reviewed Report: You are Reviewer.")
	assert.Contains(t, page, "Download Final Report")

	resp, err = c.PostForm(ts.URL+"/reset", nil)
	require.NoError(t, err)
	page = readBody(t, resp)
	assert.NotContains(t, page, "Current Status:")
	assert.Contains(t, page, `value="Go"`)

	resp, err = c.Get(ts.URL + "/?tab=results")
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "Start the research process to see results here.")
}

func TestAboutAndHealth(t *testing.T) {
	ts, c := newTestServer(t, nil)

	resp, err := c.Get(ts.URL + "/?tab=about")
	require.NoError(t, err)
	page := readBody(t, resp)
	assert.Contains(t, page, "<h2>Key Components</h2>")
	assert.Contains(t, page, "<strong>Researcher</strong>")

	resp, err = c.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, "ok", readBody(t, resp))

	resp, err = c.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "research_assistant_http_requests_total")
}

func TestResultsEscapeRawHTML(t *testing.T) {
	srv := &Server{md: newMarkdown()}
	out := string(srv.renderMarkdown("# Title\n\n<script>alert(1)</script>"))
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.NotContains(t, out, "<script>")
}
