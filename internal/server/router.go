// Package server exposes the catalog read-only over HTTP. The serving layer
// never mutates the store; the snapshot sequence and the persisted document
// are its only views of the catalog.
package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/catalog"
)

var errMissingCatalog = errors.New("catalog reader dependency required")

// CatalogReader is the read-only surface the router consumes.
type CatalogReader interface {
	Snapshot() []catalog.Entry
}

// Dependencies carries the collaborators for NewHTTPHandler.
type Dependencies struct {
	Catalog  CatalogReader
	Realtime *RealtimeDispatcher
	Logger   *zap.Logger
}

// NewHTTPHandler builds the read-only gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Catalog == nil {
		return nil, errMissingCatalog
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		catalog:  deps.Catalog,
		realtime: deps.Realtime,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/api/images", handler.handleListImages)
	if deps.Realtime != nil {
		router.GET("/api/images/stream", handler.handleImageStream)
	}

	return router, nil
}

type httpHandler struct {
	catalog  CatalogReader
	realtime *RealtimeDispatcher
	logger   *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListImages(c *gin.Context) {
	entries := h.catalog.Snapshot()
	if entries == nil {
		entries = []catalog.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

type streamEventPayload struct {
	Kind      string `json:"kind"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (h *httpHandler) handleImageStream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	events, cleanup := h.realtime.Subscribe(c.Request.Context())
	defer cleanup()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
			return true
		case message, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, streamEventPayload{
				Kind:      message.Kind,
				SourceURL: message.SourceURL,
				Timestamp: message.Timestamp.UTC().Format(time.RFC3339),
			})
			return true
		}
	})
}
