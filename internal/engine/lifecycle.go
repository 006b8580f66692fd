package engine

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stacktrail/stacktrail/internal/events"
)

// QueryKind identifies one of the engine's independently tracked logical
// queries. Each kind has its own lifecycle state and its own guard against
// stale responses.
type QueryKind string

const (
	QueryFeed         QueryKind = "feed"
	QueryDailySummary QueryKind = "daily-summary"
	QueryVelocity     QueryKind = "velocity"
	QueryMostChanged  QueryKind = "most-changed"
	QueryTimeline     QueryKind = "timeline"
)

// QueryState is the lifecycle phase of a logical query.
type QueryState string

const (
	StateIdle      QueryState = "idle"
	StatePending   QueryState = "pending"
	StateFulfilled QueryState = "fulfilled"
	StateFailed    QueryState = "failed"
)

// QueryStatus is the externally visible condition of one logical query.
// Error carries the failure message of the most recent resolution; it is
// cleared again by the next successful one.
type QueryStatus struct {
	State      QueryState `json:"state"`
	Error      string     `json:"error,omitempty"`
	IssueID    uuid.UUID  `json:"issueId"`
	IssuedAt   *time.Time `json:"issuedAt,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// issue is the token for one in-flight fetch. Resolving requires the token
// to still be the newest issued for its kind.
type issue struct {
	kind QueryKind
	seq  uint64
	id   uuid.UUID
}

// querySlot tracks the newest issue and current status of one query kind.
type querySlot struct {
	seq    uint64
	status QueryStatus
}

// UpdateEvent is published on the event bus whenever a logical query
// changes state or a locally derived view is rebuilt.
type UpdateEvent struct {
	Query string     `json:"query"`
	State QueryState `json:"state"`
	Error string     `json:"error,omitempty"`
	At    time.Time  `json:"at"`
}

// ParamsEvent is published on the params topic when a fetch parameter
// changes. The refresh cycle reacts to the same change, so subscribers see
// the announcement before the refetched data lands.
type ParamsEvent struct {
	Field  string    `json:"field"`
	Params Params    `json:"params"`
	At     time.Time `json:"at"`
}

// beginQuery marks kind pending and returns the token its resolution must
// present. Issuing again before the previous issue resolves supersedes it.
func (e *Engine) beginQuery(kind QueryKind) issue {
	e.mu.Lock()
	slot := e.slots[kind]
	slot.seq++
	is := issue{kind: kind, seq: slot.seq, id: uuid.New()}
	now := e.clock.Now().UTC()
	slot.status = QueryStatus{State: StatePending, IssueID: is.id, IssuedAt: &now}
	e.mu.Unlock()

	fetchesIssued.WithLabelValues(string(kind)).Inc()
	e.publishUpdate(kind, StatePending, "")
	return is
}

// resolveQuery settles an issue. Only the newest issue for a kind may
// resolve; an older one is counted and dropped without touching state, so
// whatever the newest issue produced keeps standing. apply runs under the
// engine lock and only on success.
func (e *Engine) resolveQuery(is issue, fetchErr error, apply func()) bool {
	e.mu.Lock()
	slot := e.slots[is.kind]
	if slot.seq != is.seq {
		e.mu.Unlock()
		staleDiscarded.WithLabelValues(string(is.kind)).Inc()
		log.Debug().
			Str("query", string(is.kind)).
			Str("issue_id", is.id.String()).
			Msg("engine: stale response discarded")
		return false
	}

	now := e.clock.Now().UTC()
	status := QueryStatus{IssueID: is.id, IssuedAt: slot.status.IssuedAt, ResolvedAt: &now}
	if fetchErr != nil {
		status.State = StateFailed
		status.Error = fetchErr.Error()
	} else {
		status.State = StateFulfilled
		if apply != nil {
			apply()
		}
	}
	slot.status = status
	e.mu.Unlock()

	if fetchErr != nil {
		fetchFailures.WithLabelValues(string(is.kind)).Inc()
		log.Warn().Err(fetchErr).Str("query", string(is.kind)).Msg("engine: fetch failed")
	}
	e.publishUpdate(is.kind, status.State, status.Error)
	return true
}

// Status returns the current lifecycle status of one logical query.
func (e *Engine) Status(kind QueryKind) QueryStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if slot, ok := e.slots[kind]; ok {
		return slot.status
	}
	return QueryStatus{State: StateIdle}
}

func (e *Engine) publishUpdate(kind QueryKind, state QueryState, errMsg string) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(UpdateEvent{
		Query: string(kind),
		State: state,
		Error: errMsg,
		At:    e.clock.Now().UTC(),
	})
	if err != nil {
		return
	}
	e.bus.Publish(topicFor(kind), payload)
}

func topicFor(kind QueryKind) string {
	switch kind {
	case QueryFeed:
		return events.TopicFeed
	case QueryDailySummary:
		return events.TopicDailySummary
	case QueryVelocity:
		return events.TopicVelocity
	case QueryMostChanged:
		return events.TopicMostChanged
	case QueryTimeline:
		return events.TopicTimeline
	default:
		return string(kind)
	}
}
