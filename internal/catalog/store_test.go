package catalog

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingPersister struct {
	mu     sync.Mutex
	writes [][]Entry
	signal chan struct{}
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{signal: make(chan struct{}, 16)}
}

func (p *recordingPersister) Write(entries []Entry) error {
	p.mu.Lock()
	p.writes = append(p.writes, entries)
	p.mu.Unlock()
	p.signal <- struct{}{}
	return nil
}

func (p *recordingPersister) lastWrite(t *testing.T) []Entry {
	t.Helper()
	select {
	case <-p.signal:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for persist")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes[len(p.writes)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (n *recordingNotifier) Publish(event ChangeEvent) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func testEntry(sourceURL string, capturedAt int64) Entry {
	return Entry{
		SourceURL:  sourceURL,
		DisplayURL: sourceURL,
		CapturedAt: capturedAt,
		ByteSize:   1,
		Width:      1,
		Height:     1,
	}
}

func mustStore(t *testing.T, cfg StoreConfig) *Store {
	t.Helper()
	if cfg.Persister == nil {
		cfg.Persister = newRecordingPersister()
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStoreUpsertIsIdempotentPerSourceURL(t *testing.T) {
	store := mustStore(t, StoreConfig{})

	first := testEntry("https://example.com/a.png", 1000)
	if err := store.Upsert(first); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	replacement := first
	replacement.ByteSize = 999
	if err := store.Upsert(replacement); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("expected one entry, got %d", store.Len())
	}
	if got := store.Snapshot()[0].ByteSize; got != 1 {
		t.Fatalf("duplicate upsert must be a no-op, byte size changed to %d", got)
	}
}

func TestStoreRemoveByURL(t *testing.T) {
	store := mustStore(t, StoreConfig{})
	entry := testEntry("https://example.com/a.png", 1000)
	if err := store.Upsert(entry); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	removed, ok := store.RemoveByURL(entry.SourceURL)
	if !ok {
		t.Fatalf("expected removal to find the entry")
	}
	if removed.SourceURL != entry.SourceURL {
		t.Fatalf("unexpected removed entry: %#v", removed)
	}
	if store.ContainsURL(entry.SourceURL) {
		t.Fatalf("entry should be gone after removal")
	}

	if _, ok := store.RemoveByURL(entry.SourceURL); ok {
		t.Fatalf("second removal should find nothing")
	}
}

func TestStoreSnapshotSortsNewestFirstWithStableTies(t *testing.T) {
	store := mustStore(t, StoreConfig{})

	entries := []Entry{
		testEntry("https://example.com/old.png", 1000),
		testEntry("https://example.com/tie-a.png", 2000),
		testEntry("https://example.com/tie-b.png", 2000),
		testEntry("https://example.com/new.png", 3000),
	}
	for _, entry := range entries {
		if err := store.Upsert(entry); err != nil {
			t.Fatalf("unexpected upsert error: %v", err)
		}
	}

	snapshot := store.Snapshot()
	wantOrder := []string{
		"https://example.com/new.png",
		"https://example.com/tie-a.png",
		"https://example.com/tie-b.png",
		"https://example.com/old.png",
	}
	for i, want := range wantOrder {
		if snapshot[i].SourceURL != want {
			t.Fatalf("position %d: want %s, got %s", i, want, snapshot[i].SourceURL)
		}
	}
}

func TestStorePersistsOrderedSnapshotAfterMutation(t *testing.T) {
	persister := newRecordingPersister()
	store := mustStore(t, StoreConfig{Persister: persister})

	if err := store.Upsert(testEntry("https://example.com/a.png", 1000)); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	written := persister.lastWrite(t)
	if len(written) != 1 || written[0].SourceURL != "https://example.com/a.png" {
		t.Fatalf("unexpected persisted snapshot: %#v", written)
	}

	if err := store.Upsert(testEntry("https://example.com/b.png", 2000)); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	written = persister.lastWrite(t)
	if len(written) != 2 || written[0].SourceURL != "https://example.com/b.png" {
		t.Fatalf("persisted snapshot should be newest-first: %#v", written)
	}
}

func TestStoreReplaceAllTriggersSinglePersist(t *testing.T) {
	persister := newRecordingPersister()
	store := mustStore(t, StoreConfig{Persister: persister})

	survivors := []Entry{
		testEntry("https://example.com/keep-1.png", 2000),
		testEntry("https://example.com/keep-2.png", 1000),
	}
	if err := store.ReplaceAll(survivors); err != nil {
		t.Fatalf("unexpected replace error: %v", err)
	}

	written := persister.lastWrite(t)
	if len(written) != 2 {
		t.Fatalf("expected two survivors, got %d", len(written))
	}
	if store.Len() != 2 {
		t.Fatalf("expected store length 2, got %d", store.Len())
	}
}

func TestStoreSeedSkipsDuplicatesAndInvalidEntries(t *testing.T) {
	seed := []Entry{
		testEntry("https://example.com/a.png", 2000),
		testEntry("https://example.com/a.png", 1000),
		{SourceURL: "", CapturedAt: 1000},
		testEntry("https://example.com/b.png", 1000),
	}
	store := mustStore(t, StoreConfig{Seed: seed})

	if store.Len() != 2 {
		t.Fatalf("expected two seeded entries, got %d", store.Len())
	}
	if got := store.Snapshot()[0].CapturedAt; got != 2000 {
		t.Fatalf("first seed occurrence should win, got capture %d", got)
	}
}

func TestStorePublishesChangeEvents(t *testing.T) {
	notifier := &recordingNotifier{}
	store := mustStore(t, StoreConfig{Notifier: notifier})

	entry := testEntry("https://example.com/a.png", 1000)
	if err := store.Upsert(entry); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	store.RemoveByURL(entry.SourceURL)
	if err := store.ReplaceAll(nil); err != nil {
		t.Fatalf("unexpected replace error: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.events) != 3 {
		t.Fatalf("expected three change events, got %d", len(notifier.events))
	}
	wantKinds := []ChangeKind{ChangeUpsert, ChangeRemove, ChangeReplace}
	for i, want := range wantKinds {
		if notifier.events[i].Kind != want {
			t.Fatalf("event %d: want %s, got %s", i, want, notifier.events[i].Kind)
		}
	}
}

func TestStoreCloseFlushesFinalSnapshot(t *testing.T) {
	persister := newRecordingPersister()
	store, err := NewStore(StoreConfig{Persister: persister})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}

	if err := store.Upsert(testEntry("https://example.com/a.png", 1000)); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	persister.mu.Lock()
	defer persister.mu.Unlock()
	if len(persister.writes) == 0 {
		t.Fatalf("close must write a final snapshot")
	}
	final := persister.writes[len(persister.writes)-1]
	if len(final) != 1 {
		t.Fatalf("unexpected final snapshot: %#v", final)
	}
}

func TestStoreRequiresPersister(t *testing.T) {
	_, err := NewStore(StoreConfig{})
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Code() != "catalog.store.new.missing_persister" {
		t.Fatalf("unexpected error: %v", err)
	}
}
