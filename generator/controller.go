package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"blacknight/auth"
	"blacknight/diff"
	"blacknight/store"
)

const (
	DefaultTimeout = 30 * time.Second
	recordTimeout  = 10 * time.Second
)

// Recorder durably keeps appended versions. It is a best-effort side
// channel: failures are logged and never affect the history.
// Every store.ArticleStore satisfies it.
type Recorder interface {
	Save(ctx context.Context, rec store.ArticleRecord) error
}

// Controller owns the version history of one user session. At most one
// Generate or Modify call is in flight at a time; a second call fails with
// ErrOperationInProgress instead of queuing.
type Controller struct {
	agent    *Agent
	session  auth.Session
	timeout  time.Duration
	diffOpts []diff.Option
	recorder Recorder
	logger   *log.Logger
	verbose  bool
	now      func() time.Time

	busy atomic.Bool

	mu       sync.RWMutex
	history  []Version
	current  int
	originID string
}

type Option func(*Controller)

// WithTimeout bounds each backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithDiffOptions(opts ...diff.Option) Option {
	return func(c *Controller) { c.diffOpts = opts }
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithLogger(logger *log.Logger, verbose bool) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
		c.verbose = verbose
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates an empty history bound to session.
func NewController(agent *Agent, session auth.Session, opts ...Option) (*Controller, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	c := &Controller{
		agent:   agent,
		session: session,
		timeout: DefaultTimeout,
		logger:  log.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] [article] "+format, args...)
}

func (c *Controller) Session() auth.Session { return c.session }

// IsBusy reports whether a backend call is in flight.
func (c *Controller) IsBusy() bool { return c.busy.Load() }

// Reset discards the whole history.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.current = 0
	c.originID = ""
}

// Generate drafts a new article and replaces the history with it.
func (c *Controller) Generate(ctx context.Context, req Requirements, reference string) (Version, error) {
	if strings.TrimSpace(reference) == "" {
		return Version{}, ErrMissingReference
	}
	if req.Organization == "" {
		req.Organization = c.session.Organization
	}
	if err := req.Validate(); err != nil {
		return Version{}, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Version{}, ErrOperationInProgress
	}
	defer c.busy.Store(false)

	c.infof("generate start organization=%q project=%q", req.Organization, req.Project)
	content, err := c.call(ctx, func(ctx context.Context) (string, error) {
		return c.agent.Generate(ctx, req, reference)
	})
	if err != nil {
		c.logger.Printf("[article] generate failed: %v", err)
		return Version{}, wrapBackendError(ErrGenerationFailed, err)
	}

	v := Version{
		Index:       0,
		Kind:        Original,
		Title:       ExtractTitle(content),
		Content:     content,
		SourceIndex: -1,
		CreatedAt:   c.now().UTC(),
	}
	c.mu.Lock()
	c.history = []Version{v}
	c.current = 0
	c.originID = uuid.NewString()
	originID := c.originID
	c.mu.Unlock()

	c.infof("generate done title=%q chars=%d", v.Title, len([]rune(content)))
	c.record(ctx, originID, v)
	return v, nil
}

// Modify revises the current version and appends the result with a diff
// against that source.
func (c *Controller) Modify(ctx context.Context, request string) (Version, error) {
	c.mu.RLock()
	if len(c.history) == 0 {
		c.mu.RUnlock()
		return Version{}, ErrNoArticle
	}
	if strings.TrimSpace(request) == "" {
		c.mu.RUnlock()
		return Version{}, ErrEmptyRequest
	}
	sourceIndex := c.current
	source := c.history[sourceIndex].Content
	earlier := c.earlierRequestsLocked(sourceIndex)
	c.mu.RUnlock()

	if !c.busy.CompareAndSwap(false, true) {
		return Version{}, ErrOperationInProgress
	}
	defer c.busy.Store(false)

	c.infof("modify start source=%d request=%q", sourceIndex, truncate(request, 50))
	content, err := c.call(ctx, func(ctx context.Context) (string, error) {
		return c.agent.Modify(ctx, source, request, earlier)
	})
	if err != nil {
		c.logger.Printf("[article] modify failed: %v", err)
		return Version{}, wrapBackendError(ErrModificationFailed, err)
	}

	d := diff.Compute(source, content, c.diffOpts...)
	c.mu.Lock()
	if len(c.history) == 0 {
		// Reset while the call was in flight.
		c.mu.Unlock()
		return Version{}, ErrNoArticle
	}
	v := Version{
		Index:       len(c.history),
		Kind:        Modified,
		Title:       ExtractTitle(content),
		Content:     content,
		Request:     request,
		SourceIndex: sourceIndex,
		Diff:        &d,
		CreatedAt:   c.now().UTC(),
	}
	c.history = append(c.history, v)
	c.current = v.Index
	originID := c.originID
	c.mu.Unlock()

	st := d.Stats()
	c.infof("modify done version=%d added=%d removed=%d", v.Index, st.Added, st.Removed)
	c.record(ctx, originID, v)
	return v, nil
}

// SelectVersion moves the current pointer. History and stored diffs are
// left untouched.
func (c *Controller) SelectVersion(index int) (Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.history) {
		return Version{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(c.history))
	}
	c.current = index
	return c.history[index], nil
}

// Version returns the version at index without selecting it.
func (c *Controller) Version(index int) (Version, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.history) {
		return Version{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(c.history))
	}
	return c.history[index], nil
}

// ExportCurrent returns the current content with a deterministic filename.
func (c *Controller) ExportCurrent() (ExportFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.history) == 0 {
		return ExportFile{}, ErrNoArticle
	}
	return ExportFile{
		Content:  c.history[c.current].Content,
		Filename: ExportFilename(c.current),
	}, nil
}

// ExportFilename names the text file for the version at index.
func ExportFilename(index int) string {
	if index == 0 {
		return "original_article.txt"
	}
	return fmt.Sprintf("modified_article_v%d.txt", index)
}

// History returns a copy of all versions in creation order.
func (c *Controller) History() []Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Version, len(c.history))
	copy(out, c.history)
	return out
}

// Current returns the selected version; ok is false when the history is empty.
func (c *Controller) Current() (Version, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.history) == 0 {
		return Version{}, false
	}
	return c.history[c.current], true
}

func (c *Controller) CurrentIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch len(c.history) {
	case 0:
		return Empty
	case 1:
		return HasOriginal
	default:
		return HasModifications
	}
}

// OriginID identifies the current history in the article store; it changes
// on every successful Generate.
func (c *Controller) OriginID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.originID
}

type callResult struct {
	content string
	err     error
}

// call runs fn under the controller timeout. A backend that ignores its
// context is abandoned at the deadline and its late reply is dropped.
func (c *Controller) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		content, err := fn(callCtx)
		done <- callResult{content: content, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, r.err)
		}
		return r.content, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
}

// earlierRequestsLocked walks the source chain back to the original and
// returns its modification requests oldest first.
func (c *Controller) earlierRequestsLocked(index int) []string {
	var reqs []string
	for i := index; i > 0; i = c.history[i].SourceIndex {
		reqs = append([]string{c.history[i].Request}, reqs...)
	}
	return reqs
}

func (c *Controller) record(ctx context.Context, originID string, v Version) {
	if c.recorder == nil {
		return
	}
	description := v.Request
	if description == "" {
		description = v.Title
	}
	rec := store.ArticleRecord{
		NewsID:      uuid.NewString(),
		OriginID:    originID,
		OwnerID:     c.session.UserID,
		Version:     v.Index,
		Content:     v.Content,
		Description: description,
		CreatedAt:   v.CreatedAt,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.recorder.Save(ctx, rec); err != nil {
		c.logger.Printf("[article] record version %d of %s failed: %v", v.Index, originID, err)
	}
}

func wrapBackendError(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
