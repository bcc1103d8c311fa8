// Package resolver picks the image a view should display for a poster and walks
// a bounded fallback chain when loading fails.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/internal/remote"
)

// DefaultLoadTimeout is the slow-load guard applied to every attempt.
const DefaultLoadTimeout = 10 * time.Second

// ErrUnresolvable marks an entry whose real sources are exhausted. It never
// leaves this package: the caller gets the placeholder instead.
var ErrUnresolvable = errors.New("image unresolvable")

// Source says where a candidate URL came from.
type Source string

const (
	SourceStorage     Source = "storage"
	SourceURL         Source = "url"
	SourcePlaceholder Source = "placeholder"
)

// Resolution is the URL a view should try next for one entry.
type Resolution struct {
	EntryID poster.ID `json:"id"`
	URL     string    `json:"url"`
	Source  Source    `json:"source"`
	// Attempt is 0 for the initial candidate and counts retries after that.
	Attempt int `json:"attempt"`
	// Terminal is set once the placeholder is shown; no further attempts follow.
	Terminal bool `json:"terminal"`
	// Deadline is when an unfinished load counts as failed. Zero for the placeholder.
	Deadline time.Time `json:"deadline,omitzero"`
}

// LoadFunc attempts to load url and returns nil once it is displayable.
type LoadFunc func(ctx context.Context, url string) error

// chainState remembers the sources it was built from. A chain whose entry now
// has different sources is stale and is started over.
type chainState struct {
	imagePath string
	imageURL  string
	chain     []Resolution
	attempt   int
	loaded    bool
	detached  bool
}

func (st *chainState) matches(entry poster.Entry) bool {
	return st.imagePath == entry.ImagePath && st.imageURL == entry.ImageURL
}

// Resolver keeps one attempt counter per entry. It is safe for concurrent use.
type Resolver struct {
	layout  remote.StorageLayout
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu     sync.Mutex
	states map[poster.ID]*chainState
}

func New(layout remote.StorageLayout, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	return &Resolver{
		layout:  layout,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With("component", "resolver"),
		states:  make(map[poster.ID]*chainState),
	}
}

// Resolve returns the initial candidate for entry and (re)starts its chain:
// storage path first, then the external URL, then the placeholder.
func (r *Resolver) Resolve(entry poster.Entry) Resolution {
	st := r.newState(entry)
	r.mu.Lock()
	r.states[entry.ID] = st
	r.mu.Unlock()
	return r.stamp(st.chain[0])
}

func (r *Resolver) newState(entry poster.Entry) *chainState {
	chain := r.chainFor(entry)
	return &chainState{
		imagePath: entry.ImagePath,
		imageURL:  entry.ImageURL,
		chain:     chain,
		detached:  chain[0].Source == SourcePlaceholder,
	}
}

// Fail records that the current candidate failed to load and returns the next
// one. The bool is false once the chain has been detached: the placeholder is
// returned again and nothing is counted.
func (r *Resolver) Fail(id poster.ID) (Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failLocked(id)
}

// failAt fails attempt only if the chain is still on it. Two callers probing
// the same candidate advance the chain once.
func (r *Resolver) failAt(id poster.ID, attempt int) Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[id]; ok && !st.detached && st.attempt != attempt {
		return r.stamp(st.chain[st.attempt])
	}
	res, _ := r.failLocked(id)
	return res
}

func (r *Resolver) failLocked(id poster.ID) (Resolution, bool) {
	st, ok := r.states[id]
	if !ok || st.detached {
		return placeholderFor(id, 0), false
	}
	st.attempt++
	st.loaded = false
	if st.attempt >= len(st.chain)-1 {
		st.attempt = len(st.chain) - 1
		st.detached = true
		r.logger.Debug("falling back to placeholder", "id", id, "error", ErrUnresolvable)
	}
	return r.stamp(st.chain[st.attempt]), true
}

// Loaded records a successful load, which clears the slow-load guard.
func (r *Resolver) Loaded(id poster.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[id]; ok {
		st.loaded = true
	}
}

// Expire treats the current attempt as failed when its deadline has passed and
// the image has not loaded. It is the polling form of the slow-load guard.
func (r *Resolver) Expire(id poster.ID, deadline time.Time) (Resolution, bool) {
	r.mu.Lock()
	st, ok := r.states[id]
	expired := ok && !st.loaded && !st.detached && !deadline.IsZero() && !r.now().Before(deadline)
	r.mu.Unlock()
	if !expired {
		return Resolution{}, false
	}
	return r.Fail(id)
}

// Tracked reports whether a chain is running for the current image sources of
// entry. A chain started before its image_path or image_url changed is not.
func (r *Resolver) Tracked(entry poster.Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[entry.ID]
	return ok && st.matches(entry)
}

// Forget drops the state of an entry, e.g. after it was deleted.
func (r *Resolver) Forget(id poster.ID) {
	r.mu.Lock()
	delete(r.states, id)
	r.mu.Unlock()
}

// Watch drives the chain for entry using load, giving every attempt the
// slow-load timeout. It continues from wherever the chain stands: a candidate
// that already loaded, or the placeholder, is returned without calling load.
func (r *Resolver) Watch(ctx context.Context, entry poster.Entry, load LoadFunc) Resolution {
	res, loaded := r.resume(entry)
	if loaded {
		return res
	}
	for !res.Terminal {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := load(attemptCtx, res.URL)
		cancel()
		if err == nil {
			r.Loaded(entry.ID)
			return res
		}
		if ctx.Err() != nil {
			return res
		}
		r.logger.DebugContext(ctx, "image attempt failed", "id", entry.ID, "source", res.Source, "attempt", res.Attempt, "error", err)
		res = r.failAt(entry.ID, res.Attempt)
	}
	return res
}

// resume returns the current candidate of entry's chain, starting a new chain
// when there is none or its sources changed.
func (r *Resolver) resume(entry poster.Entry) (Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[entry.ID]
	if !ok || !st.matches(entry) {
		st = r.newState(entry)
		r.states[entry.ID] = st
	}
	return r.stamp(st.chain[st.attempt]), st.loaded
}

// Initial returns the first candidate without touching any state.
func (r *Resolver) Initial(entry poster.Entry) Resolution {
	return r.chainFor(entry)[0]
}

func (r *Resolver) chainFor(entry poster.Entry) []Resolution {
	chain := make([]Resolution, 0, 3)
	if entry.HasImagePath() {
		chain = append(chain, Resolution{EntryID: entry.ID, URL: r.layout.PublicURL(entry.ImagePath), Source: SourceStorage})
	}
	if entry.HasImageURL() {
		chain = append(chain, Resolution{EntryID: entry.ID, URL: entry.ImageURL, Source: SourceURL})
	}
	chain = append(chain, placeholderFor(entry.ID, 0))
	for i := range chain {
		chain[i].Attempt = i
	}
	return chain
}

func (r *Resolver) stamp(res Resolution) Resolution {
	if res.Source == SourcePlaceholder {
		res.Terminal = true
		res.Deadline = time.Time{}
		return res
	}
	res.Deadline = r.now().Add(r.timeout)
	return res
}

func placeholderFor(id poster.ID, attempt int) Resolution {
	return Resolution{EntryID: id, URL: Placeholder, Source: SourcePlaceholder, Attempt: attempt, Terminal: true}
}
