// Package cache provides pluggable caching for computed layouts.
//
// Three backends are included: RedisCache for the service, FileCache for
// CLI usage, and NullCache to disable caching. All backends store opaque
// byte slices; callers serialize their own values. Keys are produced by a
// [Keyer] so every component derives keys the same way.
package cache

import (
	"context"
	"time"
)

// TTLs for the different cached value types.
const (
	// LayoutTTL bounds how long a computed layout stays valid. Layouts are
	// pure functions of their input, so this only limits storage growth.
	LayoutTTL = 24 * time.Hour

	// StatsTTL bounds cached graph statistics.
	StatsTTL = time.Hour
)

// Cache is the interface all cache backends implement.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// LayoutKeyOpts carries every option that changes a layout result, so two
// requests share a cache entry only when their outputs are identical.
type LayoutKeyOpts struct {
	Algorithm         string  `json:"algorithm"`
	BlockWidth        float64 `json:"block_width"`
	BlockHeight       float64 `json:"block_height"`
	HorizontalGap     float64 `json:"horizontal_gap"`
	VerticalGap       float64 `json:"vertical_gap"`
	UsePolylines      bool    `json:"use_polylines"`
	PolylineThreshold int     `json:"polyline_threshold"`
	CompactLayout     bool    `json:"compact_layout"`
}

// Keyer derives cache keys from request parameters.
type Keyer interface {
	// LayoutKey keys a computed layout by the graph content hash and the
	// options that shaped it.
	LayoutKey(graphHash string, opts LayoutKeyOpts) string

	// StatsKey keys computed graph statistics by the graph content hash.
	StatsKey(graphHash string) string
}

// DefaultKeyer is the standard Keyer implementation.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// LayoutKey implements Keyer.
func (k *DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", graphHash, opts)
}

// StatsKey implements Keyer.
func (k *DefaultKeyer) StatsKey(graphHash string) string {
	return hashKey("stats", graphHash)
}
