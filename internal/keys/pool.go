package keys

import (
	"log/slog"
	"sync"

	"subtrans/internal/logging"
)

// Pool is an ordered set of credentials with a rotation cursor.
type Pool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
	// ticks counts acquisitions and failures; cooled maps a key to the tick
	// at which it last failed.
	ticks  int
	cooled map[string]int
	logger *slog.Logger
}

// NewPool creates a pool holding keys.
func NewPool(keys []string, logger *slog.Logger) *Pool {
	p := &Pool{logger: logging.NewComponentLogger(logger, "keys")}
	p.Initialize(keys)
	return p
}

// Initialize replaces the pool contents and resets the cursor. Callers that
// already acquired a key keep using it.
func (p *Pool) Initialize(keys []string) {
	cleaned := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	p.keys = cleaned
	p.cursor = 0
	p.ticks = 0
	p.cooled = make(map[string]int)
	p.logger.Debug("key pool initialized", logging.Int("keys", len(cleaned)))
}

// Size returns the number of keys in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// HasAvailableKey reports whether Acquire would currently return a key.
func (p *Pool) HasAvailableKey() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, key := range p.keys {
		if p.eligible(key) {
			return true
		}
	}
	return false
}

// Acquire returns the next eligible key in rotation order. When every key is
// cooling down it starts a fresh lap and returns the key at the cursor. It
// returns false only for an empty pool.
func (p *Pool) Acquire() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.keys)
	if n == 0 {
		return "", false
	}
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		if p.eligible(p.keys[idx]) {
			return p.take(idx), true
		}
	}
	p.cooled = make(map[string]int)
	p.logger.Info("all provider keys cooling down; starting a fresh lap",
		logging.String(logging.FieldEventType, "keys_lap_reset"),
		logging.Int("keys", n),
	)
	return p.take(p.cursor), true
}

func (p *Pool) take(idx int) string {
	p.cursor = (idx + 1) % len(p.keys)
	p.ticks++
	return p.keys[idx]
}

// ReportFailure cools key down and moves the cursor past it. Unknown keys,
// including ones removed by Initialize, are ignored.
func (p *Pool) ReportFailure(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for idx, candidate := range p.keys {
		if candidate != key {
			continue
		}
		p.ticks++
		p.cooled[key] = p.ticks
		if p.cursor == idx {
			p.cursor = (idx + 1) % len(p.keys)
		}
		return
	}
}

func (p *Pool) eligible(key string) bool {
	failedAt, cooling := p.cooled[key]
	if !cooling {
		return true
	}
	if p.ticks-failedAt >= len(p.keys) {
		delete(p.cooled, key)
		return true
	}
	return false
}
