package usecase

import (
	"context"
	"errors"
	"gmptracker/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// approvable is a call on a low fee chain, old enough to be approved by hand.
func approvable() domain.GMPRecord {
	return domain.GMPRecord{
		Call:    callEvent("avalanche", time.Hour),
		GasPaid: &domain.Event{TransactionHash: "0xcall", BlockTimestamp: ago(time.Hour)},
		Gas:     gasInfo(1, 0.5),
		Status:  domain.StatusCalled,
	}
}

func newTestTracker(t *testing.T, query *fakeQuery, relay *fakeRelay, editable bool) *Tracker {
	tracker := NewTracker("0xcall", newTestEngine(), testServices(t, query, relay, nil), testOptions(editable), testLogger(t))
	t.Cleanup(tracker.Close)
	return tracker
}

func waitFound(t *testing.T, tracker *Tracker) {
	require.Eventually(t, func() bool {
		return tracker.State().Snapshot.Found
	}, waitFor, tick)
}

func TestTrackerFirstPoll(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	tracker := newTestTracker(t, query, &fakeRelay{}, false)

	waitFound(t, tracker)
	state := tracker.State()
	assert.False(t, state.Polling)
	assert.Equal(t, 1, state.Polls)
	assert.True(t, state.Snapshot.Eligibility.Approve)
	assert.Equal(t, testNow, state.UpdatedAt)
}

func TestTrackerNotIndexedYet(t *testing.T) {
	query := newFakeQuery()
	tracker := newTestTracker(t, query, &fakeRelay{}, false)

	require.Eventually(t, func() bool {
		return tracker.State().Polls == 1
	}, waitFor, tick)
	assert.False(t, tracker.State().Snapshot.Found)

	query.set("0xcall", approvable())
	require.NoError(t, tracker.Poll(context.Background()))
	waitFound(t, tracker)
}

func TestTrackerSerializesActions(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	relay := &fakeRelay{
		response: domain.RelayResponse{Success: true, TxHash: "0xsign"},
		gate:     make(chan struct{}),
	}
	tracker := newTestTracker(t, query, relay, false)
	waitFound(t, tracker)

	ctx := context.Background()
	require.NoError(t, tracker.Do(ctx, ActionRequest{Action: domain.ActionApprove}))
	state := tracker.State()
	assert.Equal(t, domain.ActionApprove, state.Pending)
	assert.Equal(t, domain.ActionStatePending, state.Response(domain.ActionApprove).State)
	assert.Equal(t, "Approving", state.Response(domain.ActionApprove).Message)

	assert.ErrorIs(t, tracker.Do(ctx, ActionRequest{Action: domain.ActionApprove}), domain.ErrorActionBusy)
	assert.ErrorIs(t, tracker.Do(ctx, ActionRequest{Action: domain.ActionAddGas}), domain.ErrorActionBusy)

	// no scheduled poll while the action is in flight
	polls := query.searchCount("0xcall")
	close(relay.gate)

	require.Eventually(t, func() bool {
		return tracker.State().Response(domain.ActionApprove).State == domain.ActionStateSuccess
	}, waitFor, tick)
	response := tracker.State().Response(domain.ActionApprove)
	assert.Equal(t, "Approve successful", response.Message)
	assert.Equal(t, "0xsign", response.TxHash)
	assert.Equal(t, domain.ExplorerAxelar, response.Explorer)
	assert.Empty(t, tracker.State().Pending)

	// every settlement is followed by a poll
	require.Eventually(t, func() bool {
		return query.searchCount("0xcall") > polls
	}, waitFor, tick)
	assert.Equal(t, 1, relay.count(domain.ActionApprove))
}

func TestTrackerRejectsIneligibleAction(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	relay := &fakeRelay{}
	tracker := newTestTracker(t, query, relay, false)
	waitFound(t, tracker)

	ctx := context.Background()
	assert.ErrorIs(t, tracker.Do(ctx, ActionRequest{Action: domain.ActionExecute}), domain.ErrorActionNotEligible)
	assert.ErrorIs(t, tracker.Do(ctx, ActionRequest{Action: "bridge"}), domain.ErrorUnknownAction)
	assert.Zero(t, relay.count(domain.ActionExecute))
	assert.Equal(t, domain.ActionStateIdle, tracker.State().Response(domain.ActionExecute).State)
}

func TestTrackerRelayFailureMessage(t *testing.T) {
	for _, tc := range []struct {
		name     string
		response domain.RelayResponse
		err      error
		message  string
	}{
		{"reason", domain.RelayResponse{}, &domain.RelayError{Reason: "execution reverted", Message: "ignored"}, "execution reverted"},
		{"plain error", domain.RelayResponse{}, errors.New("connection refused"), "connection refused"},
		{"relay refused", domain.RelayResponse{Error: "already approved"}, nil, "already approved"},
		{"generic", domain.RelayResponse{}, nil, "Approve failed"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			query := newFakeQuery()
			query.set("0xcall", approvable())
			relay := &fakeRelay{response: tc.response, err: tc.err}
			tracker := newTestTracker(t, query, relay, false)
			waitFound(t, tracker)

			require.NoError(t, tracker.Do(context.Background(), ActionRequest{Action: domain.ActionApprove}))
			require.Eventually(t, func() bool {
				return tracker.State().Response(domain.ActionApprove).Settled()
			}, waitFor, tick)
			response := tracker.State().Response(domain.ActionApprove)
			assert.Equal(t, domain.ActionStateFailed, response.State)
			assert.Equal(t, tc.message, response.Message)
		})
	}
}

func TestTrackerNotificationClearedByNextPoll(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	relay := &fakeRelay{err: errors.New("boom")}
	tracker := newTestTracker(t, query, relay, false)
	waitFound(t, tracker)

	require.NoError(t, tracker.Do(context.Background(), ActionRequest{Action: domain.ActionApprove}))
	// settle, then the forced poll marks the notification as shown
	require.Eventually(t, func() bool {
		r := tracker.State().Response(domain.ActionApprove)
		return r.Settled() && r.Shown
	}, waitFor, tick)

	require.NoError(t, tracker.Poll(context.Background()))
	require.Eventually(t, func() bool {
		return tracker.State().Response(domain.ActionApprove).State == domain.ActionStateIdle
	}, waitFor, tick)
}

func TestTrackerDismiss(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	relay := &fakeRelay{err: errors.New("boom")}
	tracker := newTestTracker(t, query, relay, false)
	waitFound(t, tracker)

	require.NoError(t, tracker.Do(context.Background(), ActionRequest{Action: domain.ActionApprove}))
	require.Eventually(t, func() bool {
		return tracker.State().Response(domain.ActionApprove).Settled()
	}, waitFor, tick)

	assert.ErrorIs(t, tracker.Dismiss(context.Background(), "bridge"), domain.ErrorUnknownAction)
	require.NoError(t, tracker.Dismiss(context.Background(), domain.ActionApprove))
	assert.Equal(t, domain.ActionStateIdle, tracker.State().Response(domain.ActionApprove).State)
}

func TestTrackerChainsApproveAfterAddGas(t *testing.T) {
	query := newFakeQuery()
	// no gas paid on a high fee chain: adding gas is possible, approving not yet
	query.set("0xcall", domain.GMPRecord{
		Call:   callEvent("ethereum", time.Minute),
		Status: domain.StatusCalled,
	})
	relay := &fakeRelay{response: domain.RelayResponse{Success: true, TxHash: "0xgas"}}
	tracker := newTestTracker(t, query, relay, false)
	waitFound(t, tracker)
	require.True(t, tracker.State().Snapshot.Eligibility.AddGas)
	require.False(t, tracker.State().Snapshot.Eligibility.Approve)

	require.NoError(t, tracker.Do(context.Background(), ActionRequest{
		Action: domain.ActionAddGas,
		AddGas: domain.AddGasOptions{RefundAddress: "0xrefund"},
	}))
	require.Eventually(t, func() bool {
		return relay.count(domain.ActionApprove) == 1
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return tracker.State().Response(domain.ActionApprove).State == domain.ActionStateSuccess
	}, waitFor, tick)
	assert.Equal(t, domain.ExplorerSource, tracker.State().Response(domain.ActionAddGas).Explorer)
}

func TestTrackerRefund(t *testing.T) {
	record := domain.GMPRecord{
		Call:     callEvent("ethereum", time.Hour),
		GasPaid:  &domain.Event{TransactionHash: "0xcall"},
		Approved: approvedEvent(10 * time.Minute),
		Executed: &domain.Event{TransactionHash: "0xexec"},
		Gas:      gasInfo(1, 0.5),
		Status:   domain.StatusExecuted,
	}

	for _, tc := range []struct {
		name     string
		response domain.RefundResponse
		state    string
		message  string
	}{
		{"updated", domain.RefundResponse{Result: "updated"}, domain.ActionStateSuccess, "Start refund process successful"},
		{"echoed", domain.RefundResponse{Event: domain.SaveEventToRefund}, domain.ActionStateSuccess, "Start refund process successful"},
		{"refused", domain.RefundResponse{}, domain.ActionStateFailed, "Cannot start refund process"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			query := newFakeQuery()
			query.set("0xcall", record)
			query.refund = tc.response
			tracker := newTestTracker(t, query, &fakeRelay{}, false)
			waitFound(t, tracker)
			require.True(t, tracker.State().Snapshot.Eligibility.Refund)

			require.NoError(t, tracker.Do(context.Background(), ActionRequest{Action: domain.ActionRefund}))
			require.Eventually(t, func() bool {
				return tracker.State().Response(domain.ActionRefund).Settled()
			}, waitFor, tick)
			response := tracker.State().Response(domain.ActionRefund)
			assert.Equal(t, tc.state, response.State)
			assert.Equal(t, tc.message, response.Message)

			query.mu.Lock()
			defer query.mu.Unlock()
			require.Len(t, query.posts, 1)
			assert.Equal(t, "saveGMP", query.posts[0].Method)
			assert.Equal(t, "0xcall", query.posts[0].SourceTransactionHash)
			assert.Equal(t, domain.SaveEventToRefund, query.posts[0].Event)
			require.NotNil(t, query.posts[0].SourceTransactionLogIndex)
			assert.EqualValues(t, 2, *query.posts[0].SourceTransactionLogIndex)
		})
	}
}

func TestTrackerCorrectionRepollsOnSaveFailure(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", domain.GMPRecord{
		Call:       callEvent("ethereum", time.Hour),
		Approved:   approvedEvent(time.Hour),
		IsExecuted: domain.BoolPtr(true),
		Status:     domain.StatusExecuted,
	})
	query.saveErr = errors.New("indexer down")
	query.saveGate = make(chan struct{})
	tracker := newTestTracker(t, query, &fakeRelay{}, true)
	waitFound(t, tracker)

	hash := "0x" + "ab12ab12ab12ab12ab12ab12ab12ab12ab12ab12ab12ab12ab12ab12ab12ab12"
	ctx := context.Background()
	assert.ErrorIs(t, tracker.Correct(ctx, CorrectionRequest{Step: domain.StepExecuted}), domain.ErrorEmptyHash)

	require.NoError(t, tracker.Correct(ctx, CorrectionRequest{Step: domain.StepExecuted, Hash: hash}))
	assert.True(t, tracker.State().Editing[domain.StepExecuted])
	assert.ErrorIs(t, tracker.Correct(ctx, CorrectionRequest{Step: domain.StepExecuted, Hash: hash}), domain.ErrorCorrectionInFlight)

	polls := query.searchCount("0xcall")
	close(query.saveGate)

	require.Eventually(t, func() bool {
		return len(tracker.State().Editing) == 0 && query.searchCount("0xcall") > polls
	}, waitFor, tick)

	saves := query.savedParams()
	require.Len(t, saves, 1)
	assert.Equal(t, hash, saves[0].TransactionHash)
	assert.Empty(t, saves[0].Event)
}

func TestTrackerCorrectionRequiresEditable(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	tracker := newTestTracker(t, query, &fakeRelay{}, false)
	waitFound(t, tracker)

	err := tracker.Refresh(context.Background(), domain.StepExecuted)
	assert.ErrorIs(t, err, domain.ErrorNotEditable)
}

func TestTrackerDiscardsResultsOfPreviousHash(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	other := approvable()
	other.Call.TransactionHash = "0xother"
	query.set("0xother", other)
	query.blockHash = "0xcall"
	query.gate = make(chan struct{})

	tracker := newTestTracker(t, query, &fakeRelay{}, false)
	require.Eventually(t, func() bool {
		return query.searchCount("0xcall") == 1
	}, waitFor, tick)

	require.NoError(t, tracker.retarget(context.Background(), "0xother"))
	waitFound(t, tracker)
	close(query.gate)

	// give the released poll a chance to deliver its stale result
	require.NoError(t, tracker.Poll(context.Background()))
	require.Eventually(t, func() bool {
		return query.searchCount("0xother") >= 2 && !tracker.State().Polling
	}, waitFor, tick)

	state := tracker.State()
	assert.Equal(t, "0xother", state.TxHash)
	assert.Equal(t, "0xother", state.Record.Call.TransactionHash)
	assert.ErrorIs(t, tracker.retarget(context.Background(), " "), domain.ErrorEmptyHash)
}

func TestTrackerClosed(t *testing.T) {
	query := newFakeQuery()
	tracker := newTestTracker(t, query, &fakeRelay{}, false)
	tracker.Close()
	tracker.Close()

	assert.True(t, tracker.Closed())
	assert.ErrorIs(t, tracker.Do(context.Background(), ActionRequest{Action: domain.ActionApprove}), domain.ErrorTrackerClosed)
	assert.ErrorIs(t, tracker.Poll(context.Background()), domain.ErrorTrackerClosed)
}

func TestTrackerJournal(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	journal := &memoryJournal{}
	relay := &fakeRelay{response: domain.RelayResponse{Success: true, TxHash: "0xsign"}}
	tracker := NewTracker("0xcall", newTestEngine(), testServices(t, query, relay, journal), testOptions(false), testLogger(t))
	t.Cleanup(tracker.Close)
	waitFound(t, tracker)

	require.NoError(t, tracker.Do(context.Background(), ActionRequest{Action: domain.ActionApprove}))
	require.Eventually(t, func() bool {
		entries, _ := journal.FindByTxHash("0xcall", 0)
		return len(entries) == 1
	}, waitFor, tick)

	entries, _ := journal.FindByTxHash("0xcall", 0)
	assert.Equal(t, "approve", entries[0].Action)
	assert.Equal(t, domain.ActionStateSuccess, entries[0].State)
	assert.Equal(t, "0xsign", entries[0].RelayTxHash)
}

func TestTrackerSuspendsPollingWhileActionPending(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	relay := &fakeRelay{
		response: domain.RelayResponse{Success: true, TxHash: "0xsign"},
		gate:     make(chan struct{}),
	}
	options := testOptions(false)
	options.PollInterval = 10 * time.Millisecond
	tracker := NewTracker("0xcall", newTestEngine(), testServices(t, query, relay, nil), options, testLogger(t))
	t.Cleanup(tracker.Close)
	waitFound(t, tracker)

	// scheduled polls run while nothing is in flight
	require.Eventually(t, func() bool {
		return query.searchCount("0xcall") >= 3
	}, waitFor, tick)

	require.NoError(t, tracker.Do(context.Background(), ActionRequest{Action: domain.ActionApprove}))
	require.Eventually(t, func() bool {
		return !tracker.State().Polling && relay.count(domain.ActionApprove) == 1
	}, waitFor, tick)

	before := query.searchCount("0xcall")
	time.Sleep(15 * options.PollInterval)
	assert.Equal(t, before, query.searchCount("0xcall"))
	assert.Equal(t, domain.ActionApprove, tracker.State().Pending)

	close(relay.gate)
	require.Eventually(t, func() bool {
		return tracker.State().Response(domain.ActionApprove).State == domain.ActionStateSuccess
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return query.searchCount("0xcall") >= before+2
	}, waitFor, tick)
}

func TestTrackerWaitsSettleDelay(t *testing.T) {
	query := newFakeQuery()
	query.set("0xcall", approvable())
	relay := &fakeRelay{response: domain.RelayResponse{Success: true, TxHash: "0xsign"}}
	options := testOptions(false)
	options.SettleDelay = 200 * time.Millisecond
	tracker := NewTracker("0xcall", newTestEngine(), testServices(t, query, relay, nil), options, testLogger(t))
	t.Cleanup(tracker.Close)
	waitFound(t, tracker)

	started := time.Now()
	require.NoError(t, tracker.Do(context.Background(), ActionRequest{Action: domain.ActionApprove}))
	require.Eventually(t, func() bool {
		return relay.count(domain.ActionApprove) == 1
	}, waitFor, tick)

	// the relay answered, success is held back until the indexer caught up
	assert.Equal(t, domain.ActionStatePending, tracker.State().Response(domain.ActionApprove).State)
	assert.Equal(t, domain.ActionApprove, tracker.State().Pending)

	require.Eventually(t, func() bool {
		return tracker.State().Response(domain.ActionApprove).State == domain.ActionStateSuccess
	}, waitFor, tick)
	assert.GreaterOrEqual(t, time.Since(started), options.SettleDelay)
}

func TestTrackerOptionsDefaults(t *testing.T) {
	options := TrackerOptions{}.withDefaults()
	assert.Equal(t, defaultPollInterval, options.PollInterval)
	assert.Equal(t, defaultRequestTimeout, options.RequestTimeout)
	assert.Equal(t, defaultSettleDelay, options.SettleDelay)
	assert.Equal(t, defaultChainDelay, options.ChainDelay)
	assert.NotNil(t, options.Now)

	options = TrackerOptions{SettleDelay: NoDelay, ChainDelay: NoDelay}.withDefaults()
	assert.Zero(t, options.SettleDelay)
	assert.Zero(t, options.ChainDelay)

	options = TrackerOptions{SettleDelay: 3 * time.Second, ChainDelay: 2 * time.Second}.withDefaults()
	assert.Equal(t, 3*time.Second, options.SettleDelay)
	assert.Equal(t, 2*time.Second, options.ChainDelay)
}
