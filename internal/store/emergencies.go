package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EmergencyStore holds the authoritative, append-only log of emergencies in
// one ordered slice, indexed by id, and persisted wholesale to a JSON file.
// The "active list" served to clients is a view over that log: the ids raised
// during this process lifetime, in raise order. Records loaded from disk at
// startup stay in the log (and keep being persisted) but are not part of the
// view, so a restart intentionally resets what GET /api/emergencies returns.
//
// The view is never pruned: resolved emergencies stay in it with
// status=resolved, and callers that want only unresolved ones filter by
// status themselves.
type EmergencyStore struct {
	mu       sync.Mutex
	path     string
	logger   *slog.Logger
	now      func() time.Time
	notifier Notifier

	records []Emergency
	index   map[string]int // id -> position in records
	session []string       // ids raised this process, in raise order
}

// EmergencyStoreConfig holds the configuration for an EmergencyStore.
type EmergencyStoreConfig struct {
	// Logger is the structured logger.
	Logger *slog.Logger
	// Path is the backing JSON file ({"emergencies": [...]}).
	Path string
	// Notifier receives lifecycle events for real-time fan-out. Optional.
	Notifier Notifier
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

type emergencyFile struct {
	Emergencies []Emergency `json:"emergencies"`
}

// NewEmergencyStore creates an EmergencyStore and loads the persisted log.
// A missing or corrupt file yields an empty log.
func NewEmergencyStore(cfg *EmergencyStoreConfig) (*EmergencyStore, error) {
	if cfg == nil {
		return nil, errors.New("emergency store config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Path == "" {
		return nil, errors.New("store path cannot be empty")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &EmergencyStore{
		path:     cfg.Path,
		logger:   cfg.Logger,
		now:      now,
		notifier: cfg.Notifier,
		index:    make(map[string]int),
	}

	var doc emergencyFile
	readFile(s.path, &doc, s.logger)
	s.records = doc.Emergencies
	for i := range s.records {
		s.index[s.records[i].ID] = i
	}

	s.logger.Info("emergency store loaded", "path", s.path, "emergencies", len(s.records))
	return s, nil
}

// SetNotifier attaches the fan-out notifier. The store and the hub reference
// each other (the hub pulls the join snapshot from the store), so the
// notifier is wired after both are constructed.
func (s *EmergencyStore) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Raise creates an active emergency for the given device. The device record
// must have been looked up by the caller; its display strings are copied into
// the emergency as creation-time snapshots. The owner display name resolves
// in order: explicit parameter, device ownerDisplayName, device ownerName,
// then a literal fallback.
func (s *EmergencyStore) Raise(dev Device, ownerDisplayName string, loc Location) (Emergency, error) {
	name := ownerDisplayName
	if name == "" {
		name = dev.OwnerDisplayName
	}
	if name == "" {
		name = dev.OwnerName
	}
	if name == "" {
		name = fallbackDisplayName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	em := Emergency{
		ID:               uuid.NewString(),
		DeviceID:         dev.DeviceID,
		OwnerDisplayName: name,
		DeviceName:       dev.DeviceName,
		Location:         loc,
		Timestamp:        s.now().UTC(),
		Status:           StatusActive,
	}

	s.records = append(s.records, em)
	s.index[em.ID] = len(s.records) - 1
	s.session = append(s.session, em.ID)

	if err := s.persistLocked(); err != nil {
		s.records = s.records[:len(s.records)-1]
		delete(s.index, em.ID)
		s.session = s.session[:len(s.session)-1]
		return Emergency{}, err
	}

	s.logger.Warn("emergency raised",
		"emergency_id", em.ID,
		"device_id", em.DeviceID,
		"owner", em.OwnerDisplayName,
	)

	if s.notifier != nil {
		s.notifier.EmergencyRaised(em)
	}
	return em, nil
}

// ListActive returns the session view: every emergency raised during this
// process lifetime, including ones already resolved.
func (s *EmergencyStore) ListActive() []Emergency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionViewLocked()
}

// Resolve marks an emergency as resolved and stamps resolvedAt. Only
// emergencies in the session view can be resolved; unknown ids fail with
// ErrNotFound. Resolving an already-resolved emergency succeeds again and
// re-stamps resolvedAt.
func (s *EmergencyStore) Resolve(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inSessionLocked(id) {
		return fmt.Errorf("%w: emergency %q", ErrNotFound, id)
	}

	i := s.index[id]
	prev := s.records[i]

	ts := s.now().UTC()
	s.records[i].Status = StatusResolved
	s.records[i].ResolvedAt = &ts

	if err := s.persistLocked(); err != nil {
		s.records[i] = prev
		return err
	}

	s.logger.Info("emergency resolved", "emergency_id", id, "device_id", s.records[i].DeviceID)

	if s.notifier != nil {
		s.notifier.EmergencyResolved(id)
	}
	return nil
}

// Count returns the size of the session view.
func (s *EmergencyStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.session)
}

func (s *EmergencyStore) sessionViewLocked() []Emergency {
	out := make([]Emergency, 0, len(s.session))
	for _, id := range s.session {
		out = append(out, s.records[s.index[id]])
	}
	return out
}

func (s *EmergencyStore) inSessionLocked(id string) bool {
	for _, sid := range s.session {
		if sid == id {
			return true
		}
	}
	return false
}

func (s *EmergencyStore) persistLocked() error {
	if err := writeFile(s.path, emergencyFile{Emergencies: s.records}); err != nil {
		s.logger.Error("failed to persist emergency store", "error", err)
		return err
	}
	return nil
}
