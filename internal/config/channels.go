package config

import "sync"

// Channels holds the channel identifiers that administrators can repoint at
// runtime through the /fotogalerie command.
type Channels struct {
	mu      sync.RWMutex
	photoID string
	logID   string
}

// NewChannels returns a Channels seeded from static configuration.
func NewChannels(photoID, logID string) *Channels {
	return &Channels{photoID: photoID, logID: logID}
}

// PhotoID returns the current photo channel identifier.
func (c *Channels) PhotoID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.photoID
}

// LogID returns the current log channel identifier, empty when unset.
func (c *Channels) LogID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logID
}

// SetPhotoID repoints the photo channel.
func (c *Channels) SetPhotoID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photoID = id
}

// SetLogID repoints the log channel.
func (c *Channels) SetLogID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logID = id
}
