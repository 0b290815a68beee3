package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when cache data is corrupted
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Stats holds cache metrics.
type Stats struct {
	Dir       string
	Capacity  int64 // bytes
	Size      int64 // bytes on disk
	Original  int64 // bytes before compression
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64

	LastAccess time.Time
	LastEvict  time.Time
}

// Ratio returns the compression ratio, or 1 when nothing is stored.
func (s Stats) Ratio() float64 {
	if s.Size == 0 {
		return 1
	}
	return float64(s.Original) / float64(s.Size)
}

// Key identifies one synthesized utterance: the same text spoken by the
// same voice at the same rate and sample rate yields the same audio.
type Key struct {
	Text       string
	Voice      string
	Rate       float64
	SampleRate int
}

// String returns the hex digest used as the on-disk name.
func (k Key) String() string {
	h := sha256.New()
	h.Write([]byte(k.Voice))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(k.Rate, 'f', 3, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k.SampleRate)))
	h.Write([]byte{0})
	h.Write([]byte(k.Text))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
