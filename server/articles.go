package server

import (
	"net/http"

	"blacknight/auth"
	"blacknight/store"
)

// Article history endpoints read the durable store filled by the session
// recorders. Users see their own articles; admins see everyone's.

func (s *Server) articleStore(w http.ResponseWriter) (store.ArticleStore, bool) {
	if s.articles == nil {
		writeError(w, http.StatusNotFound, "article store not configured")
		return nil, false
	}
	return s.articles, true
}

func (s *Server) handleOwnerArticles(w http.ResponseWriter, r *http.Request) {
	articles, ok := s.articleStore(w)
	if !ok {
		return
	}
	ownerID := r.PathValue("ownerId")
	user, _ := auth.FromContext(r.Context())
	if !user.CanAccessOwner(ownerID) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	recs, err := articles.ListCurrentByOwner(r.Context(), ownerID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": nonNil(recs)})
}

func (s *Server) handleOriginVersions(w http.ResponseWriter, r *http.Request) {
	articles, ok := s.articleStore(w)
	if !ok {
		return
	}
	recs, err := articles.ListVersions(r.Context(), r.PathValue("originId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(recs) == 0 {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	user, _ := auth.FromContext(r.Context())
	if !user.CanAccessOwner(recs[0].OwnerID) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": recs})
}

func (s *Server) handleArticleVersion(w http.ResponseWriter, r *http.Request) {
	articles, ok := s.articleStore(w)
	if !ok {
		return
	}
	rec, err := articles.GetVersion(r.Context(), r.PathValue("versionId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	user, _ := auth.FromContext(r.Context())
	if !user.CanAccessOwner(rec.OwnerID) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func nonNil(recs []store.ArticleRecord) []store.ArticleRecord {
	if recs == nil {
		return []store.ArticleRecord{}
	}
	return recs
}
