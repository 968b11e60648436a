package usecase

import (
	"context"
	"gmptracker/domain"
	"gmptracker/interface/exporter"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Manager keeps one tracker per transaction hash.
type Manager struct {
	engine   *Engine
	services Services
	options  TrackerOptions
	logger   zerolog.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
	closed   bool
}

func NewManager(engine *Engine, services Services, options TrackerOptions, logger zerolog.Logger) *Manager {
	return &Manager{
		engine:   engine,
		services: services,
		options:  options,
		logger:   logger.With().Str("component", "manager").Logger(),
		trackers: make(map[string]*Tracker),
	}
}

func trackerKey(txHash string) string {
	return strings.ToLower(strings.TrimSpace(txHash))
}

// Track returns the tracker of a hash, starting one if needed.
func (manager *Manager) Track(txHash string) (*Tracker, error) {
	key := trackerKey(txHash)
	if key == "" {
		return nil, domain.ErrorEmptyHash
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.closed {
		return nil, domain.ErrorTrackerClosed
	}
	if tracker, exist := manager.trackers[key]; exist {
		return tracker, nil
	}

	tracker := NewTracker(strings.TrimSpace(txHash), manager.engine, manager.services, manager.options, manager.logger)
	manager.trackers[key] = tracker
	exporter.SetTrackers(len(manager.trackers))
	manager.logger.Info().Str("tx", txHash).Msg("🟢 tracking")
	return tracker, nil
}

// Get returns the tracker of a hash without starting one.
func (manager *Manager) Get(txHash string) (*Tracker, bool) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	tracker, exist := manager.trackers[trackerKey(txHash)]
	return tracker, exist
}

func (manager *Manager) Len() int {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return len(manager.trackers)
}

// Retarget moves the tracker of one hash to another, dropping what it knew
// about the old hash along with its late results.
func (manager *Manager) Retarget(ctx context.Context, from, to string) (*Tracker, error) {
	oldKey, newKey := trackerKey(from), trackerKey(to)
	if oldKey == "" || newKey == "" {
		return nil, domain.ErrorEmptyHash
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()
	tracker, exist := manager.trackers[oldKey]
	if !exist {
		return nil, domain.ErrorRecordNotFound
	}
	if oldKey == newKey {
		return tracker, nil
	}
	if _, taken := manager.trackers[newKey]; taken {
		return nil, domain.ErrorAlreadyTracked
	}

	if err := tracker.retarget(ctx, strings.TrimSpace(to)); err != nil {
		return nil, err
	}
	delete(manager.trackers, oldKey)
	manager.trackers[newKey] = tracker
	manager.logger.Info().Str("from", from).Str("tx", to).Msg("🔵 tracking another hash")
	return tracker, nil
}

// Close stops tracking a hash. It reports whether a tracker existed.
func (manager *Manager) Close(txHash string) bool {
	key := trackerKey(txHash)
	manager.mu.Lock()
	tracker, exist := manager.trackers[key]
	delete(manager.trackers, key)
	exporter.SetTrackers(len(manager.trackers))
	manager.mu.Unlock()

	if exist {
		tracker.Close()
		manager.logger.Info().Str("tx", txHash).Msg("🔵 stopped tracking")
	}
	return exist
}

// Shutdown closes every tracker; Track fails afterwards.
func (manager *Manager) Shutdown() {
	manager.mu.Lock()
	trackers := manager.trackers
	manager.trackers = make(map[string]*Tracker)
	manager.closed = true
	exporter.SetTrackers(0)
	manager.mu.Unlock()

	var wg sync.WaitGroup
	for _, tracker := range trackers {
		wg.Add(1)
		go func(tracker *Tracker) {
			defer wg.Done()
			tracker.Close()
		}(tracker)
	}
	wg.Wait()
	manager.logger.Info().Int("trackers", len(trackers)).Msg("🔴 all trackers stopped")
}
