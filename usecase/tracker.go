package usecase

import (
	"context"
	"errors"
	"gmptracker/domain"
	"gmptracker/interface/exporter"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	messageApproving       = "Approving"
	messageApproveSuccess  = "Approve successful"
	messageExecuting       = "Executing"
	messageExecuteSuccess  = "Execute successful"
	messageExecuteFailed   = "Error Execution. Please see the error on console."
	messagePayingGas       = "Estimating & Paying gas"
	messagePayGasSuccess   = "Pay gas successful"
	messageRefunding       = "Refunding"
	messageRefundSuccess   = "Start refund process successful"
	messageRefundFailed    = "Cannot start refund process"
	refundPath             = "/"
	refundResultUpdated    = "updated"
	defaultPollInterval    = 9 * time.Second
	defaultRequestTimeout  = 30 * time.Second
	defaultSettleDelay     = 15 * time.Second
	defaultChainDelay      = 1 * time.Second
	pollResultFound        = "found"
	pollResultNotFound     = "not_found"
	pollResultFailed       = "failed"
	correctionActionPrefix = "correct_"
)

var actionTitles = map[domain.Action]string{
	domain.ActionApprove: "Approve",
	domain.ActionExecute: "Execute",
	domain.ActionAddGas:  "Pay gas",
	domain.ActionRefund:  "Refund",
}

type TrackerOptions struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// SettleDelay and ChainDelay use their defaults when zero; NoDelay
	// disables them.
	SettleDelay time.Duration
	ChainDelay  time.Duration
	Editable    bool

	// Now is the clock handed to the engine; defaults to time.Now.
	Now func() time.Time
	// OnUpdate is called from the tracker loop after every state change.
	// It must not block.
	OnUpdate func(TrackerState)
}

func (o TrackerOptions) withDefaults() TrackerOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	o.SettleDelay = delayOrDefault(o.SettleDelay, defaultSettleDelay)
	o.ChainDelay = delayOrDefault(o.ChainDelay, defaultChainDelay)
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NoDelay turns off the settle or chain delay; a zero delay means the default.
const NoDelay time.Duration = -1

func delayOrDefault(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	}
	return d
}

// Services are the collaborators shared by every tracker.
type Services struct {
	Query       QueryClient
	Relay       RelayClient
	Links       *LinkResolver
	Corrections *CorrectionSubmitter
	Journal     *JournalInteractor
}

type ActionRequest struct {
	Action domain.Action        `json:"action"`
	AddGas domain.AddGasOptions `json:"add_gas,omitempty"`

	// force skips the eligibility check; used when chaining approve after a
	// gas top-up, before the snapshot reflects the new payment.
	force bool
}

type command struct {
	run   func() error
	reply chan error
}

// Tracker follows one transaction hash. A single loop goroutine owns the
// state; polls, actions and corrections run in their own goroutines and
// report back as events.
type Tracker struct {
	reducer  Reducer
	services Services
	options  TrackerOptions
	logger   zerolog.Logger

	state    TrackerState
	commands chan command
	events   chan Event

	mu        sync.RWMutex
	published TrackerState

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewTracker(txHash string, engine *Engine, services Services, options TrackerOptions, logger zerolog.Logger) *Tracker {
	options = options.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	tracker := &Tracker{
		reducer:  NewReducer(engine, options.Editable),
		services: services,
		options:  options,
		logger:   logger.With().Str("component", "tracker").Logger(),
		state:    NewTrackerState(txHash),
		commands: make(chan command),
		events:   make(chan Event),
		ctx:      ctx,
		cancel:   cancel,
	}
	tracker.published = tracker.state

	tracker.wg.Add(1)
	go tracker.loop()
	return tracker
}

// State returns the latest published state. The returned value is never
// modified afterwards.
func (t *Tracker) State() TrackerState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.published
}

func (t *Tracker) Editable() bool {
	return t.options.Editable
}

// Close stops the loop and waits for in-flight work to observe it.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		t.wg.Wait()
	})
}

func (t *Tracker) Closed() bool {
	return t.ctx.Err() != nil
}

func (t *Tracker) loop() {
	defer t.wg.Done()

	interval := t.options.PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.startPoll()
	for {
		select {

		case <-ticker.C:
			ticker.Stop()
			if !t.state.Suspended() && !t.state.Polling {
				t.startPoll()
			}
			ticker.Reset(interval)

		case cmd := <-t.commands:
			cmd.reply <- cmd.run()

		case event := <-t.events:
			t.apply(event)
			switch event.(type) {
			case ActionSettled, EditSettled:
				t.startPoll()
			}

		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Tracker) apply(event Event) {
	t.state = t.reducer.Reduce(t.state, event)
	t.mu.Lock()
	t.published = t.state
	t.mu.Unlock()
	if t.options.OnUpdate != nil {
		t.options.OnUpdate(t.state)
	}
}

// send hands an event to the loop unless the tracker is closed. The channel
// is unbuffered: once send returns the loop has taken the event, so a command
// issued afterwards by the same goroutine sees its effect.
func (t *Tracker) send(event Event) bool {
	select {
	case t.events <- event:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// call runs fn on the loop goroutine and returns its result.
func (t *Tracker) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case t.commands <- command{run: fn, reply: reply}:
	case <-t.ctx.Done():
		return domain.ErrorTrackerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-t.ctx.Done():
		return domain.ErrorTrackerClosed
	}
}

func (t *Tracker) sleep(d time.Duration) bool {
	if d <= 0 {
		return t.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// startPoll always takes a new sequence number, so the result of a poll
// already in flight is discarded once a newer one starts.
func (t *Tracker) startPoll() {
	txHash := t.state.TxHash
	seq := t.state.PollSeq + 1
	t.apply(PollStarted{TxHash: txHash, Seq: seq})

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(t.ctx, t.options.RequestTimeout)
		defer cancel()

		record, links, err := t.poll(ctx, txHash)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.logger.Warn().Err(err).Str("tx", txHash).Msg("🟡 poll failed")
			exporter.IncPoll(pollResultFailed)
			t.send(PollFailed{TxHash: txHash, Seq: seq, Err: err})
			return
		}
		if record == nil {
			exporter.IncPoll(pollResultNotFound)
		} else {
			exporter.IncPoll(pollResultFound)
		}
		t.send(PollSucceeded{TxHash: txHash, Seq: seq, Record: record, Links: links, Now: t.options.Now()})
	}()
}

func (t *Tracker) poll(ctx context.Context, txHash string) (*domain.GMPRecord, domain.Links, error) {
	records := t.services.Query.SearchGMP(ctx, domain.SearchParams{TxHash: txHash})
	if err := ctx.Err(); err != nil {
		return nil, domain.Links{}, domain.NewTrackerError(domain.ErrCodeTimeout, txHash, err)
	}
	if len(records) == 0 {
		t.logger.Debug().Str("tx", txHash).Msg("🔵 not indexed yet")
		return nil, domain.Links{}, nil
	}
	record := &records[0]
	var links domain.Links
	if t.services.Links != nil {
		links = t.services.Links.Fetch(ctx, record)
	}
	return record, links, nil
}

// Poll forces a poll now, discarding the result of any poll in flight.
func (t *Tracker) Poll(ctx context.Context) error {
	return t.call(ctx, func() error {
		t.startPoll()
		return nil
	})
}

// Do starts a recovery action. It returns as soon as the action is pending;
// the outcome shows up in the state.
func (t *Tracker) Do(ctx context.Context, request ActionRequest) error {
	return t.call(ctx, func() error {
		return t.startAction(request)
	})
}

func (t *Tracker) startAction(request ActionRequest) error {
	title, exist := actionTitles[request.Action]
	if !exist {
		return domain.ErrorUnknownAction
	}
	if t.state.Pending != "" {
		return domain.ErrorActionBusy
	}
	if !request.force && !t.state.Snapshot.Eligibility.Allows(request.Action) {
		return domain.ErrorActionNotEligible
	}

	t.apply(ActionStarted{Action: request.Action, Message: startMessage(request.Action)})
	t.logger.Info().Str("tx", t.state.TxHash).Str("action", string(request.Action)).Msgf("🔵 %v started", title)

	txHash := t.state.TxHash
	snapshot := t.state.Snapshot
	t.wg.Add(1)
	go t.perform(txHash, request, snapshot, time.Now())
	return nil
}

func startMessage(action domain.Action) string {
	switch action {
	case domain.ActionApprove:
		return messageApproving
	case domain.ActionExecute:
		return messageExecuting
	case domain.ActionAddGas:
		return messagePayingGas
	case domain.ActionRefund:
		return messageRefunding
	}
	return ""
}

func (t *Tracker) perform(txHash string, request ActionRequest, snapshot domain.Snapshot, started time.Time) {
	defer t.wg.Done()

	ctx, cancel := context.WithTimeout(t.ctx, t.options.RequestTimeout)
	response := t.run(ctx, txHash, request.Action, request.AddGas, snapshot)
	cancel()

	succeeded := response.State == domain.ActionStateSuccess
	if succeeded && !t.sleep(t.options.SettleDelay) {
		return
	}
	if !t.send(ActionSettled{TxHash: txHash, Action: request.Action, Response: response}) {
		return
	}

	event := t.logger.Info()
	if !succeeded {
		event = t.logger.Warn()
	}
	event.Str("tx", txHash).
		Str("action", string(request.Action)).
		Str("state", response.State).
		Str("relay_tx", response.TxHash).
		Msg(response.Message)
	exporter.IncAction(string(request.Action), response.State)
	t.services.Journal.Record(txHash, string(request.Action), response, started)

	if succeeded && request.Action == domain.ActionAddGas && !approved(snapshot) {
		if !t.sleep(t.options.ChainDelay) {
			return
		}
		err := t.Do(t.ctx, ActionRequest{Action: domain.ActionApprove, force: true})
		if err != nil && !errors.Is(err, domain.ErrorTrackerClosed) && !errors.Is(err, context.Canceled) {
			t.logger.Warn().Err(err).Str("tx", txHash).Msg("🟡 approve after paying gas")
		}
	}
}

func approved(snapshot domain.Snapshot) bool {
	r := snapshot.Record
	return r != nil && (r.Approved != nil || r.Executed != nil || domain.IsTrue(r.IsExecuted))
}

func (t *Tracker) run(ctx context.Context, txHash string, action domain.Action, options domain.AddGasOptions, snapshot domain.Snapshot) domain.ActionResponse {
	generic := actionTitles[action] + " failed"
	callHash := txHash
	var call *domain.Event
	if snapshot.Record != nil && snapshot.Record.Call != nil {
		call = snapshot.Record.Call
		if call.TransactionHash != "" {
			callHash = call.TransactionHash
		}
	}

	switch action {
	case domain.ActionApprove:
		res, err := t.services.Relay.ManualRelayToDestChain(ctx, callHash)
		if err != nil {
			return failed(humanMessage(err, generic))
		}
		if !res.Success {
			return failed(firstNonEmpty(res.Error, generic))
		}
		return domain.ActionResponse{
			State:    domain.ActionStateSuccess,
			Message:  messageApproveSuccess,
			TxHash:   res.TxHash,
			Explorer: domain.ExplorerAxelar,
		}

	case domain.ActionExecute:
		var logIndex int64
		if call != nil && call.LogIndex.Valid {
			logIndex = call.LogIndex.V
		}
		res, err := t.services.Relay.Execute(ctx, callHash, logIndex)
		if err != nil {
			return failed(humanMessage(err, generic))
		}
		if !res.Success || res.TxHash == "" {
			return failed(firstNonEmpty(res.Error, messageExecuteFailed))
		}
		return domain.ActionResponse{
			State:    domain.ActionStateSuccess,
			Message:  messageExecuteSuccess,
			TxHash:   res.TxHash,
			Explorer: domain.ExplorerDestination,
		}

	case domain.ActionAddGas:
		chain := ""
		if call != nil {
			chain = call.Chain
		}
		res, err := t.services.Relay.AddNativeGas(ctx, chain, callHash, options)
		if err != nil {
			return failed(humanMessage(err, generic))
		}
		if !res.Success {
			return failed(firstNonEmpty(res.Error, generic))
		}
		return domain.ActionResponse{
			State:    domain.ActionStateSuccess,
			Message:  messagePayGasSuccess,
			TxHash:   res.TxHash,
			Explorer: domain.ExplorerSource,
		}

	case domain.ActionRefund:
		params := domain.CallTriple(call)
		params.Event = domain.SaveEventToRefund
		res, err := t.services.Query.ExecPost(ctx, refundPath, params)
		if err != nil {
			return failed(humanMessage(err, messageRefundFailed))
		}
		if !res.Success && res.Result != refundResultUpdated && res.Event != domain.SaveEventToRefund {
			return failed(messageRefundFailed)
		}
		return domain.ActionResponse{
			State:   domain.ActionStateSuccess,
			Message: messageRefundSuccess,
		}
	}
	return failed(generic)
}

func failed(message string) domain.ActionResponse {
	return domain.ActionResponse{State: domain.ActionStateFailed, Message: message}
}

func humanMessage(err error, generic string) string {
	var relayErr *domain.RelayError
	if errors.As(err, &relayErr) {
		return relayErr.HumanMessage(generic)
	}
	if err == nil {
		return generic
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Correct submits a manual correction for a step and re-polls once the
// submission settles, whether it was saved or not.
func (t *Tracker) Correct(ctx context.Context, request CorrectionRequest) error {
	return t.call(ctx, func() error {
		return t.startCorrection(request)
	})
}

// Refresh re-submits the step's own indexed hash.
func (t *Tracker) Refresh(ctx context.Context, step domain.StepID) error {
	return t.Correct(ctx, CorrectionRequest{Step: step, Refresh: true})
}

func (t *Tracker) startCorrection(request CorrectionRequest) error {
	if t.services.Corrections == nil || !t.options.Editable {
		return domain.ErrorNotEditable
	}
	if t.state.Editing[request.Step] {
		return domain.ErrorCorrectionInFlight
	}
	params, err := t.services.Corrections.Prepare(t.state.Snapshot, t.options.Editable, request)
	if err != nil {
		return err
	}

	t.apply(EditSubmitted{Step: request.Step})
	txHash := t.state.TxHash
	started := time.Now()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(t.ctx, t.options.RequestTimeout)
		t.services.Corrections.Submit(ctx, request.Step, params)
		cancel()
		if !t.send(EditSettled{TxHash: txHash, Step: request.Step}) {
			return
		}
		t.services.Journal.Record(txHash, correctionActionPrefix+string(request.Step), domain.ActionResponse{
			State:   domain.ActionStateSuccess,
			Message: params.Event,
			TxHash:  params.TransactionHash,
		}, started)
	}()
	return nil
}

// Dismiss clears a settled notification; an empty action clears them all.
func (t *Tracker) Dismiss(ctx context.Context, action domain.Action) error {
	if action != "" {
		if _, exist := actionTitles[action]; !exist {
			return domain.ErrorUnknownAction
		}
	}
	return t.call(ctx, func() error {
		t.apply(Dismissed{Action: action})
		return nil
	})
}

// retarget switches the tracker to another hash. Everything known about the
// previous one is dropped, and so are its late results. Hosts go through
// Manager.Retarget so the tracker stays keyed by its hash.
func (t *Tracker) retarget(ctx context.Context, txHash string) error {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return domain.ErrorEmptyHash
	}
	return t.call(ctx, func() error {
		t.apply(HashChanged{TxHash: txHash})
		t.startPoll()
		return nil
	})
}
