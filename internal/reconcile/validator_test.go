package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/fotogalerie/gallerybot/internal/catalog"
	"github.com/fotogalerie/gallerybot/internal/stream"
)

func mustValidator(t *testing.T, cfg ValidatorConfig) *Validator {
	t.Helper()
	if cfg.Markers.Processed == "" {
		cfg.Markers = testMarkers
	}
	validator, err := NewValidator(cfg)
	if err != nil {
		t.Fatalf("unexpected validator error: %v", err)
	}
	return validator
}

func TestValidatorEvictsEntriesWithDeletedMessages(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	kept := imageMessage("msg-keep", base.Add(time.Hour), "keep.png")
	doomed := imageMessage("msg-gone", base, "gone.png")
	history := newFakeHistory(kept, doomed)
	store := mustTestStore(t)
	codec := mustTestCodec(t, &stubDownloader{})
	seedEntry(t, store, kept, codec)
	seedEntry(t, store, doomed, codec)

	history.deleteMessage("msg-gone")

	validator := mustValidator(t, ValidatorConfig{
		History: history,
		Store:   store,
		Marker:  &fakeMarker{},
	})

	keptCount, dropped, err := validator.Sweep(context.Background(), testChannelID)
	if err != nil {
		t.Fatalf("unexpected sweep error: %v", err)
	}

	if keptCount != 1 || dropped != 1 {
		t.Fatalf("expected 1 kept and 1 dropped, got %d and %d", keptCount, dropped)
	}
	if store.Len() != 1 {
		t.Fatalf("store should hold one survivor, got %d", store.Len())
	}
	if store.Snapshot()[0].SourceMessageID != "msg-keep" {
		t.Fatalf("wrong survivor: %s", store.Snapshot()[0].SourceMessageID)
	}
}

func TestValidatorEvictsEntriesMissingTheirAttachment(t *testing.T) {
	message := imageMessage("msg-1", time.Now().UTC(), "shot.png")
	history := newFakeHistory(message)
	store := mustTestStore(t)
	codec := mustTestCodec(t, &stubDownloader{})
	entry := seedEntry(t, store, message, codec)

	// The attachment was edited away while the message itself remains.
	history.mu.Lock()
	history.messages[0].Attachments = nil
	history.mu.Unlock()

	validator := mustValidator(t, ValidatorConfig{
		History: history,
		Store:   store,
		Marker:  &fakeMarker{},
	})

	if _, dropped, err := validator.Sweep(context.Background(), testChannelID); err != nil || dropped != 1 {
		t.Fatalf("expected one eviction, dropped=%d err=%v", dropped, err)
	}
	if store.ContainsURL(entry.SourceURL) {
		t.Fatalf("entry without a backing attachment should be evicted")
	}
}

func TestValidatorEvictsEntriesCarryingRemovalMarkers(t *testing.T) {
	message := imageMessage("msg-1", time.Now().UTC(), "shot.png")
	history := newFakeHistory(message)
	store := mustTestStore(t)
	codec := mustTestCodec(t, &stubDownloader{})
	entry := seedEntry(t, store, message, codec)

	history.setReactions("msg-1", stream.Reaction{Emoji: "🚫"})

	validator := mustValidator(t, ValidatorConfig{
		History: history,
		Store:   store,
		Marker:  &fakeMarker{},
	})

	if _, dropped, err := validator.Sweep(context.Background(), testChannelID); err != nil || dropped != 1 {
		t.Fatalf("expected one eviction, dropped=%d err=%v", dropped, err)
	}
	if store.ContainsURL(entry.SourceURL) {
		t.Fatalf("entry under a removal marker should be evicted")
	}
}

func TestValidatorRemarksSurvivors(t *testing.T) {
	message := imageMessage("msg-1", time.Now().UTC(), "shot.png")
	history := newFakeHistory(message)
	store := mustTestStore(t)
	codec := mustTestCodec(t, &stubDownloader{})
	seedEntry(t, store, message, codec)
	marker := &fakeMarker{}

	validator := mustValidator(t, ValidatorConfig{
		History: history,
		Store:   store,
		Marker:  marker,
	})

	keptCount, dropped, err := validator.Sweep(context.Background(), testChannelID)
	if err != nil {
		t.Fatalf("unexpected sweep error: %v", err)
	}
	if keptCount != 1 || dropped != 0 {
		t.Fatalf("expected 1 kept and 0 dropped, got %d and %d", keptCount, dropped)
	}
	if marker.addedCount() != 1 {
		t.Fatalf("survivor should be re-marked processed")
	}
}

func TestValidatorKeepsEntriesOnTransientLookupFailures(t *testing.T) {
	store := mustTestStore(t)
	entry := catalog.Entry{
		SourceURL:       "https://example.com/a.png",
		SourceMessageID: "msg-1",
		CapturedAt:      1000,
		ByteSize:        1,
		Width:           1,
		Height:          1,
	}
	if err := store.Upsert(entry); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	validator := mustValidator(t, ValidatorConfig{
		History: failingHistory{},
		Store:   store,
		Marker:  &fakeMarker{},
	})

	keptCount, dropped, err := validator.Sweep(context.Background(), testChannelID)
	if err != nil {
		t.Fatalf("unexpected sweep error: %v", err)
	}
	if keptCount != 1 || dropped != 0 {
		t.Fatalf("transient failure must not evict, kept=%d dropped=%d", keptCount, dropped)
	}
}

type failingHistory struct{}

func (failingHistory) Messages(_ context.Context, _ string, _ int, _ string) ([]stream.Message, error) {
	return nil, context.DeadlineExceeded
}

func (failingHistory) Message(_ context.Context, _ string, _ string) (stream.Message, error) {
	return stream.Message{}, context.DeadlineExceeded
}
