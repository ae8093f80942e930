// Package discovery pages through restaurant listings in two modes: the
// default "hot" listing and an active search over SearchCriteria.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/romato/romato/internal/client"
	"github.com/romato/romato/internal/models"
	"github.com/romato/romato/internal/telemetry"
)

// ErrSuperseded is returned to the caller of a fetch whose response arrived
// after a newer fetch had been issued. Its result is discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Mode selects what a page move replays.
type Mode int

const (
	ModeDefaultListing Mode = iota
	ModeActiveSearch
)

func (m Mode) String() string {
	if m == ModeActiveSearch {
		return "active_search"
	}
	return "default_listing"
}

// Fetcher is the part of the REST client the engine needs.
type Fetcher interface {
	HotRestaurants(ctx context.Context, page, pageSize int) (json.RawMessage, error)
	SearchRestaurants(ctx context.Context, q *client.Query) (json.RawMessage, error)
}

// ResultPage is the displayed list and its cursor.
type ResultPage struct {
	Items      []models.RestaurantSummary
	Page       int
	PageSize   int
	TotalPages int
	TotalItems *int
	Mode       Mode
}

func (r ResultPage) HasNext() bool { return r.Page < r.TotalPages }
func (r ResultPage) HasPrev() bool { return r.Page > 1 }

// Snapshot is the observable state of the engine.
type Snapshot struct {
	Criteria  SearchCriteria
	Results   ResultPage
	IsLoading bool
	Error     string
}

type Option func(*Engine)

// WithPageSize sets the page size used by Search and page moves.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithCriteria replaces the default starting criteria.
func WithCriteria(c SearchCriteria) Option {
	return func(e *Engine) {
		if n, err := c.normalized(); err == nil {
			e.criteria = n
		}
	}
}

type request struct {
	mode     Mode
	page     int
	pageSize int
	criteria SearchCriteria
}

// Engine owns the search criteria and the result page. It is safe for
// concurrent use; of overlapping fetches only the latest issued is applied.
type Engine struct {
	fetcher  Fetcher
	pageSize int

	mu        sync.Mutex
	criteria  SearchCriteria
	submitted SearchCriteria
	results   ResultPage
	loading   bool
	err       string
	seq       uint64
	subs      map[int]func(Snapshot)
	nextSub   int
}

func New(f Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:  f,
		pageSize: DefaultPageSize,
		criteria: DefaultCriteria(),
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.submitted = e.criteria
	e.results = ResultPage{Page: 1, PageSize: e.pageSize, TotalPages: 1, Mode: ModeDefaultListing}
	return e
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Criteria returns the current, possibly unsubmitted, search criteria.
func (e *Engine) Criteria() SearchCriteria {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.criteria
}

// Subscribe registers fn to receive every new snapshot. The returned
// function removes the subscription.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// SetSearchCriteria merges patch into the criteria. An invalid time or
// party size leaves the criteria unchanged.
func (e *Engine) SetSearchCriteria(patch CriteriaPatch) error {
	return e.UpdateSearchCriteria(patch.apply)
}

// UpdateSearchCriteria replaces the criteria with fn applied to the current
// value. The time is normalized before it is stored.
func (e *Engine) UpdateSearchCriteria(fn func(SearchCriteria) SearchCriteria) error {
	e.mu.Lock()
	next, err := fn(e.criteria).normalized()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.criteria = next
	e.commit()
	return nil
}

// FetchDefaultListing loads a page of the unfiltered listing. A page below
// 1 is treated as 1 and a non-positive pageSize uses the engine's size.
func (e *Engine) FetchDefaultListing(ctx context.Context, page, pageSize int) error {
	if pageSize <= 0 {
		pageSize = e.pageSize
	}
	return e.fetch(ctx, request{
		mode:     ModeDefaultListing,
		page:     max(page, 1),
		pageSize: pageSize,
	})
}

// Search submits the current criteria and loads the first page.
func (e *Engine) Search(ctx context.Context) error {
	e.mu.Lock()
	criteria := e.criteria
	e.mu.Unlock()

	return e.fetch(ctx, request{
		mode:     ModeActiveSearch,
		page:     1,
		pageSize: e.pageSize,
		criteria: criteria,
	})
}

// NextPage loads the following page in the current mode. On the last page
// it does nothing.
func (e *Engine) NextPage(ctx context.Context) error {
	return e.move(ctx, 1)
}

// PrevPage loads the preceding page in the current mode. On the first page
// it does nothing.
func (e *Engine) PrevPage(ctx context.Context) error {
	return e.move(ctx, -1)
}

func (e *Engine) move(ctx context.Context, delta int) error {
	e.mu.Lock()
	r := e.results
	target := r.Page + delta
	if target < 1 || target > r.TotalPages {
		e.mu.Unlock()
		return nil
	}
	req := request{
		mode:     r.Mode,
		page:     target,
		pageSize: r.PageSize,
		criteria: e.submitted,
	}
	e.mu.Unlock()

	return e.fetch(ctx, req)
}

func (e *Engine) fetch(ctx context.Context, req request) error {
	m := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("mode", req.mode.String()))
	m.DiscoveryFetchesTotal.Add(ctx, 1, attrs)

	e.mu.Lock()
	e.seq++
	seq := e.seq
	e.loading = true
	e.err = ""
	e.commit()

	log.Debug().
		Str("mode", req.mode.String()).
		Int("page", req.page).
		Int("page_size", req.pageSize).
		Uint64("seq", seq).
		Msg("fetching restaurants")

	var (
		raw json.RawMessage
		err error
	)
	switch req.mode {
	case ModeActiveSearch:
		raw, err = e.fetcher.SearchRestaurants(ctx, req.criteria.query(req.page, req.pageSize))
	default:
		raw, err = e.fetcher.HotRestaurants(ctx, req.page, req.pageSize)
	}

	var listing *Listing
	if err == nil {
		listing, err = DecodeListing(raw, req.page, req.pageSize)
	}

	e.mu.Lock()
	if seq != e.seq {
		e.mu.Unlock()
		m.DiscoveryStaleResponsesTotal.Add(ctx, 1, attrs)
		log.Debug().Uint64("seq", seq).Msg("discarding superseded listing response")
		return ErrSuperseded
	}

	e.loading = false

	if err != nil {
		e.err = err.Error()
		e.commit()
		m.DiscoveryFetchErrorsTotal.Add(ctx, 1, attrs)
		log.Warn().Err(err).Str("mode", req.mode.String()).Int("page", req.page).Msg("restaurant fetch failed")
		return err
	}

	p := listing.Pagination
	e.results = ResultPage{
		Items:      listing.Items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		TotalItems: p.TotalItems,
		Mode:       req.mode,
	}
	if req.mode == ModeActiveSearch {
		e.submitted = req.criteria
	}
	e.commit()

	return nil
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Criteria:  e.criteria,
		Results:   e.results,
		IsLoading: e.loading,
		Error:     e.err,
	}
}

// commit releases the lock and notifies subscribers. The caller must hold
// e.mu.
func (e *Engine) commit() {
	snap := e.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
