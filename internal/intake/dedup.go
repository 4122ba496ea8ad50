package intake

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"hedger/internal/types"
)

// Fingerprint normalizes a signal's defining fields into the dedup key. An
// explicit client idempotency key wins; otherwise the timestamp is bucketed
// to the dedup window so near-simultaneous replays collide.
func Fingerprint(sig types.Signal, window time.Duration) string {
	if key := strings.TrimSpace(sig.IdempotencyKey); key != "" {
		return "idem:" + key
	}
	bucket := sig.Timestamp.UTC().Truncate(window).Unix()
	return fmt.Sprintf("%s|%.0f|%s|%d", sig.Type, sig.Strike, sig.OptionType, bucket)
}

// DedupCache is the short-horizon replay guard. CheckAndInsert is the only
// entry point and is atomic: for any fingerprint, exactly one caller within
// the window wins.
type DedupCache struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time
	nowFn   func() time.Time
}

func NewDedupCache(window time.Duration) *DedupCache {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &DedupCache{
		window:  window,
		entries: make(map[string]time.Time),
		nowFn:   time.Now,
	}
}

func (c *DedupCache) Window() time.Duration { return c.window }

// CheckAndInsert returns true when the fingerprint was unseen within the
// window and is now claimed (first writer wins).
func (c *DedupCache) CheckAndInsert(fingerprint string) bool {
	now := c.nowFn()
	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic pruning keeps the map bounded without a sweeper task.
	for fp, at := range c.entries {
		if now.Sub(at) > c.window {
			delete(c.entries, fp)
		}
	}
	if at, ok := c.entries[fingerprint]; ok && now.Sub(at) <= c.window {
		return false
	}
	c.entries[fingerprint] = now
	return true
}

// Release drops a claimed fingerprint so a later identical signal is not
// treated as a replay. Used when admission fails after the claim.
func (c *DedupCache) Release(fingerprint string) {
	c.mu.Lock()
	delete(c.entries, fingerprint)
	c.mu.Unlock()
}
