package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blacknight/auth"
	"blacknight/generator"
	"blacknight/store"
)

// scripted hands out replies in order; a nil gate lets calls through at once.
type scripted struct {
	mu      sync.Mutex
	replies []string
	gate    chan struct{}
}

func (s *scripted) hold() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	return s.gate
}

func (s *scripted) complete(ctx context.Context, _ generator.Prompt) (string, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return "", errors.New("backend unavailable")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

type testEnv struct {
	t        *testing.T
	srv      *httptest.Server
	issuer   *auth.Issuer
	articles *store.MemoryStore
}

func newTestEnv(t *testing.T, llm *scripted) *testEnv {
	t.Helper()
	agent, err := generator.NewAgent(generator.LLMFunc(llm.complete))
	require.NoError(t, err)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	articles := store.NewMemoryStore()
	s, err := New(agent, Options{
		Issuer:   issuer,
		Articles: articles,
		Logger:   log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, issuer: issuer, articles: articles}
}

func (e *testEnv) token(userID, role string) string {
	tok, err := e.issuer.Issue(auth.Session{UserID: userID, Organization: "Acme Univ", Role: role})
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

var createBody = map[string]any{
	"requirements": map[string]string{"project": "Cloud AI", "company": "NextCloud", "keywords": "AI,cloud"},
	"reference":    "Acme Univ launched a cloud AI program.",
}

func (e *testEnv) createSession(token string) sessionResponse {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/sessions", token, createBody)
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	return decodeBody[sessionResponse](e.t, resp)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &scripted{})
	resp := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RequiresToken(t *testing.T) {
	env := newTestEnv(t, &scripted{})
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/sessions", "", createBody).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/sessions", "garbage", nil).StatusCode)
}

func TestSessionList_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t, &scripted{})
	resp := env.do(http.MethodGet, "/api/sessions", env.token("u1", "writer"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessions": []}`, string(body))
}

func TestSession_GenerateModifyDiffExport(t *testing.T) {
	env := newTestEnv(t, &scripted{replies: []string{
		"Title\nBody text.",
		"Title\nBody text. Event on May 2.",
	}})
	tok := env.token("u1", "writer")

	created := env.createSession(tok)
	assert.Equal(t, generator.HasOriginal, created.State)
	require.Len(t, created.History, 1)
	require.NotNil(t, created.Current)
	assert.Equal(t, "Title\nBody text.", created.Current.Content)
	id := created.SessionID

	resp := env.do(http.MethodPost, "/api/sessions/"+id+"/modify", tok, map[string]string{"request": "add the event date"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	modified := decodeBody[sessionResponse](t, resp)
	assert.Equal(t, generator.HasModifications, modified.State)
	assert.Equal(t, 1, modified.CurrentIndex)

	resp = env.do(http.MethodGet, "/api/sessions/"+id+"/versions/1/diff", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeBody[diffResponse](t, resp)
	assert.Equal(t, 0, d.SourceIndex)
	assert.Equal(t, 4, d.Stats.Added)
	assert.Equal(t, "Title\nBody text. Event on May 2.", d.Segments.NewText())

	resp = env.do(http.MethodGet, "/api/sessions/"+id+"/versions/1/diff?format=html", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(page), `<span style="color: green; font-weight: bold"> Event on May 2.</span>`)

	resp = env.do(http.MethodGet, "/api/sessions/"+id+"/versions/0/diff", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/sessions/"+id+"/export", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="modified_article_v1.txt"`, resp.Header.Get("Content-Disposition"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Title\nBody text. Event on May 2.", string(body))

	resp = env.do(http.MethodPost, "/api/sessions/"+id+"/select", tok, map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decodeBody[sessionResponse](t, resp).CurrentIndex)

	resp = env.do(http.MethodGet, "/api/sessions/"+id+"/export?format=html", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="original_article.html"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
}

func TestSession_Version(t *testing.T) {
	env := newTestEnv(t, &scripted{replies: []string{"# Title\n\nBody text."}})
	tok := env.token("u1", "writer")
	id := env.createSession(tok).SessionID

	resp := env.do(http.MethodGet, "/api/sessions/"+id+"/versions/0", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decodeBody[generator.Version](t, resp)
	assert.Equal(t, "Title", v.Title)

	resp = env.do(http.MethodGet, "/api/sessions/"+id+"/versions/0?format=html", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(page), `<p style="font-size:24px;font-weight:700;margin:1em 0 0.6em;">Title</p>`)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/sessions/"+id+"/versions/7", tok, nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/sessions/"+id+"/versions/x", tok, nil).StatusCode)
}

func TestSession_ErrorMapping(t *testing.T) {
	env := newTestEnv(t, &scripted{replies: []string{"Title\nBody text."}})
	tok := env.token("u1", "writer")

	resp := env.do(http.MethodPost, "/api/sessions", tok, map[string]any{"reference": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	id := env.createSession(tok).SessionID
	base := "/api/sessions/" + id

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, base+"/modify", tok, map[string]string{"request": ""}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, base+"/select", tok, map[string]string{}).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, base+"/select", tok, map[string]int{"index": 3}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, base+"/export?format=pdf", tok, nil).StatusCode)

	// The script is exhausted, so the backend now fails.
	resp = env.do(http.MethodPost, base+"/modify", tok, map[string]string{"request": "shorter"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/sessions/missing", tok, nil).StatusCode)
}

func TestSession_ConcurrentModifyIsRejected(t *testing.T) {
	llm := &scripted{replies: []string{"Title\nBody text.", "Title\nShorter."}}
	env := newTestEnv(t, llm)
	tok := env.token("u1", "writer")
	id := env.createSession(tok).SessionID

	gate := llm.hold()
	done := make(chan int)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/sessions/"+id+"/modify",
			strings.NewReader(`{"request":"shorter"}`))
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool {
		resp := env.do(http.MethodGet, "/api/sessions/"+id, tok, nil)
		return decodeBody[sessionResponse](t, resp).Busy
	}, 2*time.Second, 10*time.Millisecond)

	resp := env.do(http.MethodPost, "/api/sessions/"+id+"/modify", tok, map[string]string{"request": "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(gate)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestSession_Ownership(t *testing.T) {
	env := newTestEnv(t, &scripted{replies: []string{"Title\nBody text."}})
	owner := env.token("u1", "writer")
	id := env.createSession(owner).SessionID

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/sessions/"+id, env.token("u2", "writer"), nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/sessions/"+id, env.token("boss", auth.RoleAdmin), nil).StatusCode)

	resp := env.do(http.MethodGet, "/api/sessions", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{id}, decodeBody[map[string][]string](t, resp)["sessions"])

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/sessions/"+id, owner, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/sessions/"+id, owner, nil).StatusCode)
}

func TestArticles(t *testing.T) {
	env := newTestEnv(t, &scripted{replies: []string{"Title\nBody text.", "Title\nBody text. Event on May 2."}})
	tok := env.token("u1", "writer")
	created := env.createSession(tok)
	resp := env.do(http.MethodPost, "/api/sessions/"+created.SessionID+"/modify", tok, map[string]string{"request": "add the date"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodGet, "/api/owners/u1/articles", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	current := decodeBody[map[string][]store.ArticleRecord](t, resp)["articles"]
	require.Len(t, current, 1)
	assert.Equal(t, 1, current[0].Version)
	assert.Equal(t, created.OriginID, current[0].OriginID)
	assert.Equal(t, "add the date", current[0].Description)

	resp = env.do(http.MethodGet, "/api/origins/"+created.OriginID+"/versions", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	versions := decodeBody[map[string][]store.ArticleRecord](t, resp)["versions"]
	require.Len(t, versions, 2)
	assert.Equal(t, "Title\nBody text.", versions[0].Content)

	resp = env.do(http.MethodGet, "/api/versions/"+versions[0].NewsID, tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeBody[store.ArticleRecord](t, resp).IsCurrent)

	other := env.token("u2", "writer")
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/owners/u1/articles", other, nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/origins/"+created.OriginID+"/versions", other, nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/versions/"+versions[0].NewsID, other, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/versions/nope", tok, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/origins/nope/versions", tok, nil).StatusCode)
}
