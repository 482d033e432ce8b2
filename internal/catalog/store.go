package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingPersister = errors.New("catalog: persister is required")
	noOpLogger          = zap.NewNop()
)

const (
	opStoreNew   = "catalog.store.new"
	opUpsert     = "catalog.upsert"
	opReplaceAll = "catalog.replace_all"
	opPersist    = "catalog.persist"
)

// StoreError carries an operation.reason code alongside the underlying cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ChangeKind enumerates catalog mutations observable by listeners.
type ChangeKind string

const (
	ChangeUpsert  ChangeKind = "upsert"
	ChangeRemove  ChangeKind = "remove"
	ChangeReplace ChangeKind = "replace"
)

// ChangeEvent describes one catalog mutation.
type ChangeEvent struct {
	Kind      ChangeKind
	SourceURL string
	At        time.Time
}

// Notifier receives change events after each successful mutation. Publish
// must not block.
type Notifier interface {
	Publish(event ChangeEvent)
}

// Persister writes the ordered snapshot to the durable medium.
type Persister interface {
	Write(entries []Entry) error
}

// StoreConfig carries the dependencies for NewStore.
type StoreConfig struct {
	Persister Persister
	Notifier  Notifier
	Logger    *zap.Logger
	Clock     func() time.Time
	// Seed holds entries recovered from a previous snapshot, in persisted
	// order. Duplicates and invalid records are dropped.
	Seed []Entry
}

type storedEntry struct {
	entry Entry
	seq   int64
}

// Store is the authoritative in-memory catalog keyed by source URL. Records
// are replace-only; every mutation schedules a full snapshot rewrite with at
// most one write in flight at a time.
type Store struct {
	mu      sync.Mutex
	entries map[string]storedEntry
	nextSeq int64

	persister Persister
	notifier  Notifier
	logger    *zap.Logger
	clock     func() time.Time

	persistMu sync.Mutex
	persistCh chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewStore builds a Store and starts its persist worker.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Persister == nil {
		return nil, newStoreError(opStoreNew, "missing_persister", errMissingPersister)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	store := &Store{
		entries:   make(map[string]storedEntry, len(cfg.Seed)),
		persister: cfg.Persister,
		notifier:  cfg.Notifier,
		logger:    logger,
		clock:     clock,
		persistCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	for _, entry := range cfg.Seed {
		if entry.Validate() != nil {
			logger.Warn("dropping invalid seed entry", zap.String("source_url", entry.SourceURL))
			continue
		}
		if _, exists := store.entries[entry.SourceURL]; exists {
			continue
		}
		store.nextSeq++
		store.entries[entry.SourceURL] = storedEntry{entry: entry, seq: store.nextSeq}
	}

	go store.persistLoop()

	return store, nil
}

// Upsert inserts the entry unless one with the same source URL already
// exists. The no-op on duplicates is what makes backfill safe to re-run and
// safe to race against live ingestion.
func (s *Store) Upsert(entry Entry) error {
	if err := entry.Validate(); err != nil {
		return newStoreError(opUpsert, "invalid_entry", err)
	}

	s.mu.Lock()
	if _, exists := s.entries[entry.SourceURL]; exists {
		s.mu.Unlock()
		return nil
	}
	s.nextSeq++
	s.entries[entry.SourceURL] = storedEntry{entry: entry, seq: s.nextSeq}
	s.mu.Unlock()

	s.publish(ChangeUpsert, entry.SourceURL)
	s.schedulePersist()
	return nil
}

// RemoveByURL deletes the entry with the given source URL and reports the
// removed record, if any.
func (s *Store) RemoveByURL(sourceURL string) (Entry, bool) {
	s.mu.Lock()
	stored, exists := s.entries[sourceURL]
	if !exists {
		s.mu.Unlock()
		return Entry{}, false
	}
	delete(s.entries, sourceURL)
	s.mu.Unlock()

	s.publish(ChangeRemove, sourceURL)
	s.schedulePersist()
	return stored.entry, true
}

// ContainsURL reports whether an entry with the given source URL is live.
func (s *Store) ContainsURL(sourceURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.entries[sourceURL]
	return exists
}

// ReplaceAll swaps the full catalog for the given entries in one mutation,
// triggering a single persist. Used by the validator to bound write
// amplification when evicting many entries.
func (s *Store) ReplaceAll(entries []Entry) error {
	replacement := make(map[string]storedEntry, len(entries))
	var seq int64
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return newStoreError(opReplaceAll, "invalid_entry", err)
		}
		if _, exists := replacement[entry.SourceURL]; exists {
			continue
		}
		seq++
		replacement[entry.SourceURL] = storedEntry{entry: entry, seq: seq}
	}

	s.mu.Lock()
	s.entries = replacement
	s.nextSeq = seq
	s.mu.Unlock()

	s.publish(ChangeReplace, "")
	s.schedulePersist()
	return nil
}

// Snapshot returns the catalog sorted descending by capture instant. Equal
// instants keep their insertion order so the persisted sequence stays
// deterministic.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	stored := make([]storedEntry, 0, len(s.entries))
	for _, se := range s.entries {
		stored = append(stored, se)
	}
	s.mu.Unlock()

	sort.Slice(stored, func(i, j int) bool {
		if stored[i].entry.CapturedAt != stored[j].entry.CapturedAt {
			return stored[i].entry.CapturedAt > stored[j].entry.CapturedAt
		}
		return stored[i].seq < stored[j].seq
	})

	out := make([]Entry, len(stored))
	for i, se := range stored {
		out[i] = se.entry
	}
	return out
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the persist worker and flushes one final snapshot write.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.persistOnce()
	})
	return err
}

func (s *Store) publish(kind ChangeKind, sourceURL string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ChangeEvent{Kind: kind, SourceURL: sourceURL, At: s.clock().UTC()})
}

// schedulePersist queues at most one pending write behind the one in
// flight; the in-memory collection stays the authority in between.
func (s *Store) schedulePersist() {
	select {
	case s.persistCh <- struct{}{}:
	default:
	}
}

func (s *Store) persistLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.persistCh:
			if err := s.persistOnce(); err != nil {
				s.logger.Error("catalog persist failed",
					zap.String("operation", opPersist),
					zap.Error(err))
			}
		}
	}
}

func (s *Store) persistOnce() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.persister.Write(s.Snapshot()); err != nil {
		return newStoreError(opPersist, "write_failed", err)
	}
	return nil
}
