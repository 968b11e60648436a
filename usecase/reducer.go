package usecase

import (
	"gmptracker/domain"
	"time"
)

// TrackerState is everything a tracker knows about one transaction hash.
// Values are never mutated in place; Reduce returns a new state.
type TrackerState struct {
	TxHash   string
	Record   *domain.GMPRecord
	Links    domain.Links
	Snapshot domain.Snapshot

	Polling bool
	PollSeq uint64
	Polls   int

	Pending domain.Action
	Actions map[domain.Action]domain.ActionResponse
	Editing map[domain.StepID]bool

	UpdatedAt time.Time
}

func NewTrackerState(txHash string) TrackerState {
	return TrackerState{
		TxHash:   txHash,
		Snapshot: domain.Snapshot{TxHash: txHash},
		Actions:  map[domain.Action]domain.ActionResponse{},
		Editing:  map[domain.StepID]bool{},
	}
}

// Suspended is true while an action or a correction is in flight; no
// scheduled poll may start then.
func (s TrackerState) Suspended() bool {
	return s.Pending != "" || len(s.Editing) > 0
}

func (s TrackerState) Response(action domain.Action) domain.ActionResponse {
	if r, exist := s.Actions[action]; exist {
		return r
	}
	return domain.IdleResponse()
}

func (s TrackerState) clone() TrackerState {
	next := s
	next.Actions = make(map[domain.Action]domain.ActionResponse, len(s.Actions))
	for k, v := range s.Actions {
		next.Actions[k] = v
	}
	next.Editing = make(map[domain.StepID]bool, len(s.Editing))
	for k, v := range s.Editing {
		next.Editing[k] = v
	}
	return next
}

type Event interface {
	isEvent()
}

type PollStarted struct {
	TxHash string
	Seq    uint64
}

type PollSucceeded struct {
	TxHash string
	Seq    uint64
	// Record is nil when the hash is not indexed yet.
	Record *domain.GMPRecord
	Links  domain.Links
	Now    time.Time
}

type PollFailed struct {
	TxHash string
	Seq    uint64
	Err    error
}

type ActionStarted struct {
	Action  domain.Action
	Message string
}

// ActionSettled and EditSettled carry the hash they were started for; a
// settlement for a hash no longer tracked only triggers the re-poll.
type ActionSettled struct {
	TxHash   string
	Action   domain.Action
	Response domain.ActionResponse
}

type EditSubmitted struct {
	Step domain.StepID
}

type EditSettled struct {
	TxHash string
	Step   domain.StepID
}

// Dismissed clears a settled notification. An empty Action clears all of them.
type Dismissed struct {
	Action domain.Action
}

type HashChanged struct {
	TxHash string
}

func (PollStarted) isEvent()   {}
func (PollSucceeded) isEvent() {}
func (PollFailed) isEvent()    {}
func (ActionStarted) isEvent() {}
func (ActionSettled) isEvent() {}
func (EditSubmitted) isEvent() {}
func (EditSettled) isEvent()   {}
func (Dismissed) isEvent()     {}
func (HashChanged) isEvent()   {}

// Reducer is the single transition function of a tracker.
type Reducer struct {
	engine   *Engine
	editable bool
}

func NewReducer(engine *Engine, editable bool) Reducer {
	return Reducer{engine: engine, editable: editable}
}

func (r Reducer) Reduce(state TrackerState, event Event) TrackerState {
	switch e := event.(type) {
	case PollStarted:
		if e.TxHash != state.TxHash {
			return state
		}
		next := state.clone()
		next.Polling = true
		next.PollSeq = e.Seq
		// notifications already shown after a poll are dropped by the next one
		for action, response := range next.Actions {
			if response.Settled() && response.Shown {
				delete(next.Actions, action)
			}
		}
		return next

	case PollSucceeded:
		if e.TxHash != state.TxHash || e.Seq != state.PollSeq {
			return state
		}
		next := state.clone()
		next.Polling = false
		next.Polls++
		next.Record = state.Record.Merge(e.Record)
		next.Links = mergeLinks(state.Links, e.Links)
		next.Snapshot = r.engine.Reconcile(next.TxHash, next.Record, next.Links, e.Now, r.editable)
		next.UpdatedAt = e.Now
		for action, response := range next.Actions {
			if response.Settled() {
				response.Shown = true
				next.Actions[action] = response
			}
		}
		return next

	case PollFailed:
		if e.TxHash != state.TxHash || e.Seq != state.PollSeq {
			return state
		}
		next := state.clone()
		next.Polling = false
		return next

	case ActionStarted:
		next := state.clone()
		next.Pending = e.Action
		next.Actions[e.Action] = domain.ActionResponse{State: domain.ActionStatePending, Message: e.Message}
		return next

	case ActionSettled:
		if e.TxHash != "" && e.TxHash != state.TxHash {
			return state
		}
		next := state.clone()
		if next.Pending == e.Action {
			next.Pending = ""
		}
		response := e.Response
		response.Shown = false
		next.Actions[e.Action] = response
		return next

	case EditSubmitted:
		next := state.clone()
		next.Editing[e.Step] = true
		return next

	case EditSettled:
		if e.TxHash != "" && e.TxHash != state.TxHash {
			return state
		}
		next := state.clone()
		delete(next.Editing, e.Step)
		return next

	case Dismissed:
		next := state.clone()
		for action, response := range next.Actions {
			if response.Settled() && (e.Action == "" || e.Action == action) {
				delete(next.Actions, action)
			}
		}
		return next

	case HashChanged:
		if e.TxHash == state.TxHash {
			return state
		}
		next := NewTrackerState(e.TxHash)
		// sequence numbers keep growing so results of the old hash are discarded
		next.PollSeq = state.PollSeq
		return next
	}
	return state
}

func mergeLinks(prev, next domain.Links) domain.Links {
	merged := next
	if merged.Callback == nil {
		merged.Callback = prev.Callback
	}
	if merged.Origin == nil {
		merged.Origin = prev.Origin
	}
	return merged
}
