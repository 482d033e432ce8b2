package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fotogalerie/gallerybot/internal/catalog"
	"github.com/fotogalerie/gallerybot/internal/config"
	"github.com/fotogalerie/gallerybot/internal/stream"
)

const testChannelID = "photo-channel"

var testMarkers = Markers{
	Removal:   []string{"❌", "🚫"},
	Processed: "✅",
}

type silentPersister struct{}

func (silentPersister) Write(_ []catalog.Entry) error { return nil }

// fakeHistory serves a newest-first message sequence with cursor paging and
// by-ID lookup, the same surface the Discord session exposes.
type fakeHistory struct {
	mu       sync.Mutex
	messages []stream.Message
	fetches  int
}

func newFakeHistory(messages ...stream.Message) *fakeHistory {
	return &fakeHistory{messages: messages}
}

func (h *fakeHistory) Messages(_ context.Context, channelID string, limit int, beforeID string) ([]stream.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetches++

	start := 0
	if beforeID != "" {
		start = len(h.messages)
		for i, message := range h.messages {
			if message.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	if start >= len(h.messages) {
		return nil, nil
	}
	end := start + limit
	if end > len(h.messages) {
		end = len(h.messages)
	}
	batch := make([]stream.Message, end-start)
	copy(batch, h.messages[start:end])
	return batch, nil
}

func (h *fakeHistory) Message(_ context.Context, _ string, messageID string) (stream.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, message := range h.messages {
		if message.ID == messageID {
			return message, nil
		}
	}
	return stream.Message{}, stream.ErrNotFound
}

func (h *fakeHistory) deleteMessage(messageID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.messages[:0]
	for _, message := range h.messages {
		if message.ID != messageID {
			kept = append(kept, message)
		}
	}
	h.messages = kept
}

func (h *fakeHistory) setReactions(messageID string, reactions ...stream.Reaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.messages {
		if h.messages[i].ID == messageID {
			h.messages[i].Reactions = reactions
			return
		}
	}
}

// fakeMarker records reaction mutations as channel/message/emoji triples.
type fakeMarker struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (m *fakeMarker) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, fmt.Sprintf("%s/%s/%s", channelID, messageID, emoji))
	return nil
}

func (m *fakeMarker) RemoveOwnReaction(_ context.Context, channelID, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, fmt.Sprintf("%s/%s/%s", channelID, messageID, emoji))
	return nil
}

func (m *fakeMarker) addedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.added)
}

type stubDownloader struct {
	mu    sync.Mutex
	calls int
}

func (d *stubDownloader) Download(_ context.Context, _ string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return []byte("image-bytes"), nil
}

func (d *stubDownloader) downloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func mustTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.NewStore(catalog.StoreConfig{Persister: silentPersister{}})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func mustTestCodec(t *testing.T, downloader *stubDownloader) *catalog.Codec {
	t.Helper()
	codec, err := catalog.NewCodec(catalog.CodecConfig{
		Downloader: downloader,
		Dimensions: func(_ []byte) (int, int, error) { return 640, 480, nil },
	})
	if err != nil {
		t.Fatalf("unexpected codec error: %v", err)
	}
	return codec
}

func imageMessage(id string, createdAt time.Time, filenames ...string) stream.Message {
	message := stream.Message{
		ID:        id,
		ChannelID: testChannelID,
		GuildID:   "guild-1",
		AuthorID:  "user-1",
		CreatedAt: createdAt,
	}
	for _, filename := range filenames {
		message.Attachments = append(message.Attachments, stream.Attachment{
			URL:         "https://example.com/attachments/" + id + "/" + filename,
			Filename:    filename,
			ContentType: "image/png",
		})
	}
	return message
}

func testChannels() *config.Channels {
	return config.NewChannels(testChannelID, "")
}
