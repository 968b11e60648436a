package api

import (
	"context"
	"encoding/json"
	"errors"
	"gmptracker/domain"
	"gmptracker/usecase"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBodySize = 64 << 10

// Server exposes the trackers of a Manager over HTTP.
type Server struct {
	manager *usecase.Manager
	journal *usecase.JournalInteractor
	logger  zerolog.Logger
}

func NewServer(manager *usecase.Manager, journal *usecase.JournalInteractor, logger zerolog.Logger) *Server {
	return &Server{
		manager: manager,
		journal: journal,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	gmp := router.PathPrefix("/gmp/{tx}").Subrouter()
	gmp.HandleFunc("", s.handleGet).Methods(http.MethodGet)
	gmp.HandleFunc("", s.handleClose).Methods(http.MethodDelete)
	gmp.HandleFunc("/poll", s.handlePoll).Methods(http.MethodPost)
	gmp.HandleFunc("/actions/{action}", s.handleAction).Methods(http.MethodPost)
	gmp.HandleFunc("/dismiss", s.handleDismiss).Methods(http.MethodPost)
	gmp.HandleFunc("/corrections", s.handleCorrection).Methods(http.MethodPost)
	gmp.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	gmp.HandleFunc("/retarget", s.handleRetarget).Methods(http.MethodPost)
	return router
}

type trackerView struct {
	TxHash    string                                  `json:"tx_hash"`
	Polling   bool                                    `json:"polling"`
	Polls     int                                     `json:"polls"`
	UpdatedAt *time.Time                              `json:"updated_at,omitempty"`
	Editable  bool                                    `json:"editable"`
	Pending   domain.Action                           `json:"pending,omitempty"`
	Actions   map[domain.Action]domain.ActionResponse `json:"actions"`
	Editing   []domain.StepID                         `json:"editing,omitempty"`
	Snapshot  domain.Snapshot                         `json:"snapshot"`
}

func newTrackerView(tracker *usecase.Tracker) trackerView {
	state := tracker.State()
	view := trackerView{
		TxHash:   state.TxHash,
		Polling:  state.Polling,
		Polls:    state.Polls,
		Editable: tracker.Editable(),
		Pending:  state.Pending,
		Actions:  make(map[domain.Action]domain.ActionResponse, len(domain.Actions)),
		Snapshot: state.Snapshot,
	}
	if !state.UpdatedAt.IsZero() {
		updated := state.UpdatedAt
		view.UpdatedAt = &updated
	}
	for _, action := range domain.Actions {
		view.Actions[action] = state.Response(action)
	}
	for step := range state.Editing {
		view.Editing = append(view.Editing, step)
	}
	sort.Slice(view.Editing, func(i, j int) bool { return view.Editing[i] < view.Editing[j] })
	return view
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"trackers": s.manager.Len(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	tracker, err := s.manager.Track(mux.Vars(r)["tx"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTrackerView(tracker))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !s.manager.Close(mux.Vars(r)["tx"]) {
		s.writeError(w, domain.ErrorRecordNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.tracker(w, r)
	if !ok {
		return
	}
	if err := tracker.Poll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newTrackerView(tracker))
}

type actionBody struct {
	RefundAddress string `json:"refund_address"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action, ok := domain.ParseAction(mux.Vars(r)["action"])
	if !ok {
		s.writeError(w, domain.ErrorUnknownAction)
		return
	}
	var body actionBody
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	tracker, ok := s.tracker(w, r)
	if !ok {
		return
	}

	request := usecase.ActionRequest{Action: action, AddGas: domain.AddGasOptions{RefundAddress: body.RefundAddress}}
	if err := tracker.Do(r.Context(), request); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newTrackerView(tracker))
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	tracker, ok := s.tracker(w, r)
	if !ok {
		return
	}
	action := domain.Action(r.URL.Query().Get("action"))
	if err := tracker.Dismiss(r.Context(), action); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTrackerView(tracker))
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var request usecase.CorrectionRequest
	if err := readJSON(r, &request); err != nil {
		s.writeError(w, err)
		return
	}
	tracker, ok := s.tracker(w, r)
	if !ok {
		return
	}
	if err := tracker.Correct(r.Context(), request); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newTrackerView(tracker))
}

type retargetBody struct {
	TxHash string `json:"tx_hash"`
}

func (s *Server) handleRetarget(w http.ResponseWriter, r *http.Request) {
	var body retargetBody
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	tracker, err := s.manager.Retarget(r.Context(), mux.Vars(r)["tx"], body.TxHash)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTrackerView(tracker))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, domain.NewTrackerError(domain.ErrCodeValidation, "", errors.New("invalid limit")))
			return
		}
		limit = n
	}
	entries, err := s.journal.History(mux.Vars(r)["tx"], limit)
	if err != nil {
		s.writeError(w, domain.NewTrackerError(domain.ErrCodeInternal, mux.Vars(r)["tx"], err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// tracker looks up an existing tracker; mutations never start one.
func (s *Server) tracker(w http.ResponseWriter, r *http.Request) (*usecase.Tracker, bool) {
	tracker, exist := s.manager.Get(mux.Vars(r)["tx"])
	if !exist {
		s.writeError(w, domain.ErrorRecordNotFound)
		return nil, false
	}
	return tracker, true
}

func readJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewTrackerError(domain.ErrCodeValidation, "", err)
	}
	return nil
}

func statusOf(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch domain.CodeOf(err) {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeConflict:
		return http.StatusConflict
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrCodeNetwork, domain.ErrCodeRelay:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("🔴 request failed")
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(domain.CodeOf(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("took", time.Since(started)).
			Msg("🔵 request")
	})
}
