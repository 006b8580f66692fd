// Package engine owns the client-side state of the change history
// dashboard: the working set of recent changes, the derived feed and
// aggregate views, and the lifecycle of every backend query. All reads and
// mutations go through one engine so every view reflects a single
// consistent snapshot.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/stacktrail/stacktrail/internal/domain"
	"github.com/stacktrail/stacktrail/internal/events"
)

// DefaultRefreshInterval is the periodic refresh cadence when the config
// does not set one.
const DefaultRefreshInterval = 60 * time.Second

// Config assembles an Engine.
type Config struct {
	// Source answers the backend queries. Required.
	Source Source
	// Bus receives view updates and params announcements. Optional.
	Bus *events.Bus
	// Clock drives timestamps and the refresh timer. Defaults to the wall
	// clock.
	Clock clock.Clock
	// Params are the initial fetch parameters. Zero fields take defaults.
	Params Params
	// RefreshInterval is the periodic refresh cadence. Non-positive selects
	// DefaultRefreshInterval.
	RefreshInterval time.Duration
	// MinRefreshGap throttles triggered refreshes so bursts of parameter
	// changes collapse into one fetch wave. Zero disables the throttle.
	MinRefreshGap time.Duration
}

// Validate reports a config the engine cannot run with.
func (c Config) Validate() error {
	if c.Source == nil {
		return fmt.Errorf("engine.Config.Validate: Source is required")
	}
	if c.Params.WindowHours < 0 {
		return fmt.Errorf("engine.Config.Validate: window hours %d: %w",
			c.Params.WindowHours, domain.ErrInvalidWindow)
	}
	if c.Params.SummaryDays < 0 {
		return fmt.Errorf("engine.Config.Validate: summary days %d must not be negative",
			c.Params.SummaryDays)
	}
	return nil
}

// Engine coordinates the standing queries against the change-history
// backend and keeps their latest committed results. Fetches resolve under
// last-write-wins: for each query kind only the newest issued fetch may
// change state, so slow responses never clobber fresher ones.
type Engine struct {
	source   Source
	bus      *events.Bus
	clock    clock.Clock
	interval time.Duration
	limiter  *rate.Limiter

	// trigger coalesces refresh requests for the run loop.
	trigger chan struct{}

	// mu guards everything below, including the query slots.
	mu             sync.RWMutex
	params         Params
	filter         domain.FeedFilter
	sortSpec       domain.SortSpec
	slots          map[QueryKind]*querySlot
	workingSet     []domain.ChangeRecord
	feedRecords    []domain.ChangeRecord
	feedSummary    WorkingSetSummary
	daily          []domain.DailyChangeCount
	velocity       []domain.TypeVelocity
	ranking        []domain.ResourceActivity
	timeline       domain.ResourceTimeline
	timelineLoaded bool
	started        bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Engine. It performs no I/O; call Start to begin fetching.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	limit := rate.Inf
	if cfg.MinRefreshGap > 0 {
		limit = rate.Every(cfg.MinRefreshGap)
	}

	e := &Engine{
		source:   cfg.Source,
		bus:      cfg.Bus,
		clock:    clk,
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		trigger:  make(chan struct{}, 1),
		params:   cfg.Params.withDefaults(),
		sortSpec: domain.DefaultSort(),
		slots: map[QueryKind]*querySlot{
			QueryFeed:         {status: QueryStatus{State: StateIdle}},
			QueryDailySummary: {status: QueryStatus{State: StateIdle}},
			QueryVelocity:     {status: QueryStatus{State: StateIdle}},
			QueryMostChanged:  {status: QueryStatus{State: StateIdle}},
			QueryTimeline:     {status: QueryStatus{State: StateIdle}},
		},
		workingSet: []domain.ChangeRecord{},
		daily:      []domain.DailyChangeCount{},
		velocity:   []domain.TypeVelocity{},
		ranking:    []domain.ResourceActivity{},
		timeline: domain.ResourceTimeline{
			Records:   []domain.ChangeRecord{},
			Anomalies: []int{},
		},
	}
	e.recomputeFeedLocked()
	return e, nil
}

// ----------------------------------------------------------------------
// Views
// ----------------------------------------------------------------------

// Feed returns a consistent snapshot of the filtered, sorted change feed
// with its working-set summary.
func (e *Engine) Feed() FeedView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return FeedView{
		Records: slices.Clone(e.feedRecords),
		Total:   len(e.workingSet),
		Filter:  cloneFilter(e.filter),
		Sort:    e.sortSpec,
		Params:  e.params,
		Summary: e.feedSummary.clone(),
		Status:  e.slots[QueryFeed].status,
	}
}

// DailySummary returns the backend's daily-breakdown view.
func (e *Engine) DailySummary() SummaryView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return SummaryView{
		Days:   e.params.SummaryDays,
		Rows:   slices.Clone(e.daily),
		Status: e.slots[QueryDailySummary].status,
	}
}

// Velocity returns the backend's change-velocity view.
func (e *Engine) Velocity() VelocityView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return VelocityView{
		Rows:   slices.Clone(e.velocity),
		Status: e.slots[QueryVelocity].status,
	}
}

// MostChanged returns the most-changed ranking view.
func (e *Engine) MostChanged() RankingView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return RankingView{
		Limit:  e.params.RankingLimit,
		Rows:   slices.Clone(e.ranking),
		Status: e.slots[QueryMostChanged].status,
	}
}

// Timeline returns the most recently committed resource timeline.
func (e *Engine) Timeline() TimelineView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tl := e.timeline
	tl.Records = slices.Clone(tl.Records)
	tl.Anomalies = slices.Clone(tl.Anomalies)
	return TimelineView{
		Loaded:   e.timelineLoaded,
		Timeline: tl,
		Status:   e.slots[QueryTimeline].status,
	}
}

// Params returns the current fetch parameters.
func (e *Engine) Params() Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

// ----------------------------------------------------------------------
// Local view controls: no refetch, synchronous recompute
// ----------------------------------------------------------------------

// SetFilter replaces the feed filter and rebuilds the feed view from the
// current working set.
func (e *Engine) SetFilter(f domain.FeedFilter) {
	e.mu.Lock()
	e.filter = cloneFilter(f)
	e.recomputeFeedLocked()
	state := e.slots[QueryFeed].status.State
	e.mu.Unlock()

	e.publishUpdate(QueryFeed, state, "")
}

// SetSort replaces the feed sort and rebuilds the feed view from the
// current working set.
func (e *Engine) SetSort(key string, descending bool) error {
	parsed, err := domain.ParseSortKey(key)
	if err != nil {
		return fmt.Errorf("engine.Engine.SetSort: %w", err)
	}

	e.mu.Lock()
	e.sortSpec = domain.SortSpec{Key: parsed, Descending: descending}
	e.recomputeFeedLocked()
	state := e.slots[QueryFeed].status.State
	e.mu.Unlock()

	e.publishUpdate(QueryFeed, state, "")
	return nil
}

// ----------------------------------------------------------------------
// Fetch parameter controls: announce, supersede in-flight, refetch
// ----------------------------------------------------------------------

// SetWindow changes the recent-changes window. Hours must be positive.
func (e *Engine) SetWindow(hours int) error {
	if hours <= 0 {
		return fmt.Errorf("engine.Engine.SetWindow: hours %d: %w", hours, domain.ErrInvalidWindow)
	}

	e.mu.Lock()
	if e.params.WindowHours == hours {
		e.mu.Unlock()
		return nil
	}
	e.params.WindowHours = hours
	e.supersedeLocked(QueryFeed)
	p := e.params
	e.mu.Unlock()

	e.announceParams("windowHours", p)
	return nil
}

// SetScope changes the domain scope applied to backend queries. Empty
// means all domains.
func (e *Engine) SetScope(scopeDomain string) {
	e.mu.Lock()
	if e.params.ScopeDomain == scopeDomain {
		e.mu.Unlock()
		return
	}
	e.params.ScopeDomain = scopeDomain
	e.supersedeLocked(QueryFeed, QueryMostChanged)
	p := e.params
	e.mu.Unlock()

	e.announceParams("scopeDomain", p)
}

// SetSummaryDays changes the daily-summary window. Days must be positive.
// The working-set summary is rebuilt immediately; the backend view follows
// on the next refresh.
func (e *Engine) SetSummaryDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("engine.Engine.SetSummaryDays: days %d must be positive", days)
	}

	e.mu.Lock()
	if e.params.SummaryDays == days {
		e.mu.Unlock()
		return nil
	}
	e.params.SummaryDays = days
	e.supersedeLocked(QueryDailySummary)
	e.recomputeFeedLocked()
	p := e.params
	e.mu.Unlock()

	e.announceParams("summaryDays", p)
	return nil
}

// SetRankingLimit changes how many resources the most-changed ranking
// keeps. The limit must be positive.
func (e *Engine) SetRankingLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("engine.Engine.SetRankingLimit: limit %d must be positive", limit)
	}

	e.mu.Lock()
	if e.params.RankingLimit == limit {
		e.mu.Unlock()
		return nil
	}
	e.params.RankingLimit = limit
	e.supersedeLocked(QueryMostChanged)
	e.recomputeFeedLocked()
	p := e.params
	e.mu.Unlock()

	e.announceParams("rankingLimit", p)
	return nil
}

// supersedeLocked invalidates the in-flight fetch of each kind, if any:
// bumping the sequence means a fetch issued under the old parameters can no
// longer commit. Callers hold e.mu.
func (e *Engine) supersedeLocked(kinds ...QueryKind) {
	for _, kind := range kinds {
		e.slots[kind].seq++
	}
}

func (e *Engine) announceParams(field string, p Params) {
	if e.bus != nil {
		payload, err := json.Marshal(ParamsEvent{Field: field, Params: p, At: e.clock.Now().UTC()})
		if err == nil {
			e.bus.Publish(events.TopicParams, payload)
		}
	}
	e.Refresh()
}

// ----------------------------------------------------------------------
// Fetching
// ----------------------------------------------------------------------

// Refresh schedules a refresh of all standing queries. Requests made
// before the refresher picks one up collapse into a single fetch wave.
func (e *Engine) Refresh() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// refreshAll issues the four standing queries concurrently and waits for
// each to resolve. Failures stay per-query: one failing fetch neither
// blocks nor corrupts the others.
func (e *Engine) refreshAll(ctx context.Context) {
	e.mu.RLock()
	p := e.params
	e.mu.RUnlock()

	var wg sync.WaitGroup
	wg.Go(func() { e.fetchFeed(ctx, p.WindowHours, p.ScopeDomain) })
	wg.Go(func() { e.fetchDailySummary(ctx, p.SummaryDays) })
	wg.Go(func() { e.fetchVelocity(ctx) })
	wg.Go(func() { e.fetchRanking(ctx, p.RankingLimit, p.ScopeDomain) })
	wg.Wait()
}

// fetchFeed replaces the working set wholesale on commit. A failed fetch
// leaves the previous working set untouched.
func (e *Engine) fetchFeed(ctx context.Context, hours int, scopeDomain string) {
	is := e.beginQuery(QueryFeed)
	records, err := e.source.RecentChanges(ctx, hours, scopeDomain)
	e.resolveQuery(is, err, func() {
		if records == nil {
			records = []domain.ChangeRecord{}
		}
		e.workingSet = records
		e.recomputeFeedLocked()
	})
}

func (e *Engine) fetchDailySummary(ctx context.Context, days int) {
	is := e.beginQuery(QueryDailySummary)
	rows, err := e.source.DailySummary(ctx, days)
	e.resolveQuery(is, err, func() {
		if rows == nil {
			rows = []domain.DailyChangeCount{}
		}
		e.daily = rows
	})
}

func (e *Engine) fetchVelocity(ctx context.Context) {
	is := e.beginQuery(QueryVelocity)
	rows, err := e.source.ChangeVelocity(ctx)
	e.resolveQuery(is, err, func() {
		if rows == nil {
			rows = []domain.TypeVelocity{}
		}
		e.velocity = rows
	})
}

// fetchRanking fetches the candidate records and ranks them locally, so
// the ranking rule is the same one the working-set summary uses.
func (e *Engine) fetchRanking(ctx context.Context, limit int, scopeDomain string) {
	is := e.beginQuery(QueryMostChanged)
	records, err := e.source.MostChanged(ctx, limit, scopeDomain)
	var rows []domain.ResourceActivity
	if err == nil {
		rows = domain.MostChanged(records, limit)
	}
	e.resolveQuery(is, err, func() {
		e.ranking = rows
	})
}

// LoadTimeline fetches one resource's full change sequence and verifies
// its hash chain. The result is returned to the caller either way; it
// becomes the engine's timeline view only if no newer load was issued
// while this one was in flight.
func (e *Engine) LoadTimeline(ctx context.Context, resourceType, resourceID string) (domain.ResourceTimeline, error) {
	is := e.beginQuery(QueryTimeline)

	records, err := e.source.ResourceHistory(ctx, resourceType, resourceID)
	if err != nil {
		e.resolveQuery(is, err, nil)
		return domain.ResourceTimeline{}, fmt.Errorf("engine.Engine.LoadTimeline: %w", err)
	}

	tl := domain.BuildTimeline(resourceType, resourceID, records)
	committed := e.resolveQuery(is, nil, func() {
		e.timeline = tl
		e.timelineLoaded = true
	})
	if committed && len(tl.Anomalies) > 0 {
		chainAnomalies.Add(float64(len(tl.Anomalies)))
		log.Warn().
			Str("resource_type", resourceType).
			Str("resource_id", resourceID).
			Ints("anomalies", tl.Anomalies).
			Msg("engine: hash chain anomalies detected")
	}
	return tl, nil
}

// recomputeFeedLocked rebuilds the filtered, sorted feed and its summary
// from the working set. Callers hold e.mu.
func (e *Engine) recomputeFeedLocked() {
	filtered := domain.ApplyFilter(e.workingSet, e.filter)
	e.feedRecords = domain.SortRecords(filtered, e.sortSpec)
	e.feedSummary = WorkingSetSummary{
		Daily:        domain.DailySummary(filtered, e.params.SummaryDays, e.clock.Now()),
		Velocity:     domain.VelocityStats(filtered),
		TopResources: domain.MostChanged(filtered, e.params.RankingLimit),
	}
	workingSetSize.Set(float64(len(e.workingSet)))
}
