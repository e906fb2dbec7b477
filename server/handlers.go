package server

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"blacknight/auth"
	"blacknight/diff"
	"blacknight/export"
	"blacknight/generator"
)

type generateRequest struct {
	Requirements generator.Requirements `json:"requirements"`
	Reference    string                 `json:"reference"`
}

type modifyRequest struct {
	Request string `json:"request" validate:"max=4000"`
}

type selectRequest struct {
	Index *int `json:"index" validate:"required"`
}

type sessionResponse struct {
	SessionID    string              `json:"session_id"`
	State        generator.State     `json:"state"`
	OriginID     string              `json:"origin_id,omitempty"`
	CurrentIndex int                 `json:"current_index"`
	Busy         bool                `json:"busy"`
	Current      *generator.Version  `json:"current,omitempty"`
	History      []generator.Version `json:"history"`
}

type diffResponse struct {
	Index       int        `json:"index"`
	SourceIndex int        `json:"source_index"`
	Segments    diff.Diff  `json:"segments"`
	Stats       diff.Stats `json:"stats"`
}

func snapshot(id string, ctrl *generator.Controller) sessionResponse {
	resp := sessionResponse{
		SessionID:    id,
		State:        ctrl.State(),
		OriginID:     ctrl.OriginID(),
		CurrentIndex: ctrl.CurrentIndex(),
		Busy:         ctrl.IsBusy(),
		History:      ctrl.History(),
	}
	if v, ok := ctrl.Current(); ok {
		resp.Current = &v
	}
	return resp
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	ids := s.store.listByOwner(user.UserID)
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// handleSessionCreate opens a session and drafts its first article.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, _ := auth.FromContext(r.Context())
	ctrl, err := generator.NewController(s.genAgent, user, s.ctrlOpts...)
	if err != nil {
		s.fail(w, err)
		return
	}
	if _, err := ctrl.Generate(r.Context(), req.Requirements, req.Reference); err != nil {
		s.fail(w, err)
		return
	}

	id := newSessionID()
	s.store.set(id, &session{ownerID: user.UserID, ctrl: ctrl})
	s.infof("session created id=%s user=%s", id, user.UserID)
	writeJSON(w, http.StatusCreated, snapshot(id, ctrl))
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request, id string, sess *session) {
	writeJSON(w, http.StatusOK, snapshot(id, sess.ctrl))
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request, id string, sess *session) {
	sess.ctrl.Reset()
	s.store.delete(id)
	s.infof("session deleted id=%s", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerate drafts a fresh article, replacing the session history.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, id string, sess *session) {
	var req generateRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := sess.ctrl.Generate(r.Context(), req.Requirements, req.Reference); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(id, sess.ctrl))
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request, id string, sess *session) {
	var req modifyRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := sess.ctrl.Modify(r.Context(), req.Request); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(id, sess.ctrl))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, id string, sess *session) {
	var req selectRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := sess.ctrl.SelectVersion(*req.Index); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(id, sess.ctrl))
}

func versionIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid version index %q", raw)
	}
	return idx, nil
}

// handleVersion returns one version; ?format=html renders it as a preview.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request, id string, sess *session) {
	idx, err := versionIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := sess.ctrl.Version(idx)
	if err != nil {
		s.fail(w, err)
		return
	}
	if r.URL.Query().Get("format") != "html" {
		writeJSON(w, http.StatusOK, v)
		return
	}
	body, err := export.MarkdownToHTML(v.Content)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

// handleDiff returns the diff stored with a modified version. The original
// has no diff and yields 404.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request, id string, sess *session) {
	idx, err := versionIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := sess.ctrl.Version(idx)
	if err != nil {
		s.fail(w, err)
		return
	}
	if v.Diff == nil {
		writeError(w, http.StatusNotFound, "original version has no diff")
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, `<div style="white-space: pre-wrap">%s</div>`, v.Diff.HTML())
		return
	}
	writeJSON(w, http.StatusOK, diffResponse{
		Index:       v.Index,
		SourceIndex: v.SourceIndex,
		Segments:    *v.Diff,
		Stats:       v.Diff.Stats(),
	})
}

// handleExport downloads the current version as txt, md or html.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id string, sess *session) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	file, err := sess.ctrl.ExportCurrent()
	if err != nil {
		s.fail(w, err)
		return
	}
	doc, err := export.Render(file.Content, file.Filename, format)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	_, _ = w.Write(doc.Body)
}
