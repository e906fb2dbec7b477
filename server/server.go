package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"blacknight/auth"
	"blacknight/generator"
	"blacknight/store"
)

// Options wires the collaborators the server hands to each session.
type Options struct {
	Issuer *auth.Issuer
	// Articles receives every appended version and serves the article
	// history endpoints. Nil disables both.
	Articles          store.ArticleStore
	ControllerOptions []generator.Option
	Logger            *log.Logger
	Verbose           bool
}

type Server struct {
	genAgent *generator.Agent
	issuer   *auth.Issuer
	articles store.ArticleStore
	ctrlOpts []generator.Option
	store    *sessionStore
	validate *validator.Validate
	logger   *log.Logger
	verbose  bool
}

// session is one user's article workspace.
type session struct {
	ownerID string
	ctrl    *generator.Controller
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) set(id string, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *sessionStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *sessionStore) listByOwner(ownerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for id, sess := range s.sessions {
		if sess.ownerID == ownerID {
			ids = append(ids, id)
		}
	}
	return ids
}

func New(genAgent *generator.Agent, opts Options) (*Server, error) {
	if genAgent == nil {
		return nil, errors.New("generator agent required")
	}
	if opts.Issuer == nil {
		return nil, errors.New("token issuer required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ctrlOpts := append([]generator.Option{generator.WithLogger(logger, opts.Verbose)}, opts.ControllerOptions...)
	if opts.Articles != nil {
		ctrlOpts = append(ctrlOpts, generator.WithRecorder(opts.Articles))
	}

	return &Server{
		genAgent: genAgent,
		issuer:   opts.Issuer,
		articles: opts.Articles,
		ctrlOpts: ctrlOpts,
		store:    newStore(),
		validate: validator.New(),
		logger:   logger,
		verbose:  opts.Verbose,
	}, nil
}

func (s *Server) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/sessions", s.handleSessionList)
	api.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	api.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleSessionGet))
	api.HandleFunc("DELETE /api/sessions/{id}", s.withSession(s.handleSessionDelete))
	api.HandleFunc("POST /api/sessions/{id}/generate", s.withSession(s.handleGenerate))
	api.HandleFunc("POST /api/sessions/{id}/modify", s.withSession(s.handleModify))
	api.HandleFunc("POST /api/sessions/{id}/select", s.withSession(s.handleSelect))
	api.HandleFunc("GET /api/sessions/{id}/versions/{index}", s.withSession(s.handleVersion))
	api.HandleFunc("GET /api/sessions/{id}/versions/{index}/diff", s.withSession(s.handleDiff))
	api.HandleFunc("GET /api/sessions/{id}/export", s.withSession(s.handleExport))
	api.HandleFunc("GET /api/owners/{ownerId}/articles", s.handleOwnerArticles)
	api.HandleFunc("GET /api/origins/{originId}/versions", s.handleOriginVersions)
	api.HandleFunc("GET /api/versions/{versionId}", s.handleArticleVersion)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.Handle("/api/", s.authMiddleware(api))
	return s.logMiddleware(mux)
}

func (s *Server) infof(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.logger.Printf("[INFO] [server] "+format, args...)
}

// --- Middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.issuer.ParseHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, id string, sess *session)

// withSession resolves {id} and checks that the caller owns the session.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		sess, ok := s.store.get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		user, _ := auth.FromContext(r.Context())
		if !user.CanAccessOwner(sess.ownerID) {
			writeError(w, http.StatusForbidden, "permission denied")
			return
		}
		h(w, r, id, sess)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// --- Helpers ---

func newSessionID() string {
	return uuid.NewString()
}

func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return s.validate.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps controller and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generator.ErrOperationInProgress):
		return http.StatusConflict
	case errors.Is(err, generator.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, generator.ErrGenerationFailed), errors.Is(err, generator.ErrModificationFailed):
		return http.StatusBadGateway
	case errors.Is(err, generator.ErrIndexOutOfRange), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case generator.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("[server] %v", err)
	}
	writeError(w, status, err.Error())
}
