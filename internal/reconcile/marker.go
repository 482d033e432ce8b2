// Package reconcile merges the update paths of the catalog (live ingestion,
// reaction-driven tombstoning and full-history backfill) and runs the
// validation sweep that reconciles drift against the live channel.
package reconcile

import (
	"context"

	"github.com/fotogalerie/gallerybot/internal/stream"
)

// Markers describes the reaction symbols driving the tombstone protocol.
type Markers struct {
	// Removal symbols assert that a human wants the image out of the catalog.
	Removal []string
	// Processed is the symbol the bot applies once an attachment is
	// represented in the catalog.
	Processed string
}

// IsRemoval reports whether the emoji is one of the removal symbols.
func (m Markers) IsRemoval(emoji string) bool {
	for _, symbol := range m.Removal {
		if symbol == emoji {
			return true
		}
	}
	return false
}

// markProcessed applies the processed marker to the message unless a removal
// marker is present or the bot already reacted. The no-op cases keep the
// operation idempotent and avoid redundant round-trips to the transport.
func markProcessed(ctx context.Context, marker stream.Marker, markers Markers, message stream.Message) error {
	for _, reaction := range message.Reactions {
		if markers.IsRemoval(reaction.Emoji) {
			return nil
		}
		if reaction.Emoji == markers.Processed && reaction.Mine {
			return nil
		}
	}
	return marker.AddReaction(ctx, message.ChannelID, message.ID, markers.Processed)
}

// isImage reports whether the attachment declares an image content kind.
func isImage(attachment stream.Attachment) bool {
	return len(attachment.ContentType) >= 6 && attachment.ContentType[:6] == "image/"
}
