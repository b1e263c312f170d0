package completion

import (
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/params"
)

// #region kv
// KV is the durable key-value boundary the progress mapping lives behind.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
}

// MemoryKV is an in-process KV.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryKV returns an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]string{}}
}

// Get returns the value under key.
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Put stores value under key.
func (m *MemoryKV) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// #endregion kv

// #region tracker
// Tracker is the process-wide completion mapping. Completion is terminal:
// once a module is complete no observation resets it.
type Tracker struct {
	kv     KV
	key    string
	logger *log.Logger
	now    func() time.Time

	mu        sync.Mutex
	flags     map[string]bool
	listeners []func(Transition)

	persistMu sync.Mutex
}

// NewTracker loads the mapping stored under key. Absent or malformed data
// yields an empty mapping; the problem is logged, never returned.
func NewTracker(kv KV, key string, logger *log.Logger) *Tracker {
	if kv == nil {
		kv = NewMemoryKV()
	}
	if key == "" {
		key = StorageKey
	}
	if logger == nil {
		logger = log.Default()
	}
	t := &Tracker{kv: kv, key: key, logger: logger, now: time.Now, flags: map[string]bool{}}

	raw, ok, err := kv.Get(key)
	switch {
	case err != nil:
		logger.Printf("load progress: %v (starting empty)", err)
	case ok:
		t.flags = Decode(raw, logger)
	}
	return t
}

// Decode parses a stored mapping. Anything that is not a JSON object yields
// an empty mapping; non-boolean entries are dropped.
func Decode(raw string, logger *log.Logger) map[string]bool {
	out := map[string]bool{}
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		if logger != nil {
			logger.Printf("malformed progress %q: %v (starting empty)", truncate(raw, 64), err)
		}
		return out
	}
	for k, v := range generic {
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out
}

// OnTransition registers fn to run after every Incomplete -> Complete change.
func (t *Tracker) OnTransition(fn func(Transition)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Observe tests reading against th and completes module on a pass.
func (t *Tracker) Observe(module string, th Threshold, reading float64, p params.Params) Decision {
	met := th.Met(reading, p)
	d := Decision{Module: module, Met: met}
	if !met {
		d.Complete = t.IsComplete(module)
		d.Reason = fmt.Sprintf("%g fails %s", reading, th.Describe(p))
		return d
	}
	d.Transitioned = t.complete(module, Transition{
		Module:    module,
		Reading:   reading,
		Threshold: th.Describe(p),
		Params:    p.Clone(),
	})
	d.Complete = true
	d.Reason = fmt.Sprintf("%g passes %s", reading, th.Describe(p))
	return d
}

// Complete marks module complete directly. Reports whether this call
// performed the transition.
func (t *Tracker) Complete(module string) bool {
	return t.complete(module, Transition{Module: module, Threshold: "manual"})
}

func (t *Tracker) complete(module string, tr Transition) bool {
	t.mu.Lock()
	if t.flags[module] {
		t.mu.Unlock()
		return false
	}
	t.flags[module] = true
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	t.persist()

	tr.At = t.now().UTC()
	for _, fn := range listeners {
		fn(tr)
	}
	return true
}

// persist writes the whole mapping. Writes are serialized and each encodes
// the mapping as it stands when its turn comes, so the last write carries
// every completion.
func (t *Tracker) persist() {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.Lock()
	payload, err := json.Marshal(t.flags)
	t.mu.Unlock()
	if err != nil {
		t.logger.Printf("encode progress: %v", err)
		return
	}
	if err := t.kv.Put(t.key, string(payload)); err != nil {
		t.logger.Printf("save progress: %v", err)
	}
}

// IsComplete reports the flag for module.
func (t *Tracker) IsComplete(module string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flags[module]
}

// Snapshot returns a copy of the mapping.
func (t *Tracker) Snapshot() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.flags))
	for k, v := range t.flags {
		out[k] = v
	}
	return out
}

// Completed lists complete modules in name order.
func (t *Tracker) Completed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for k, v := range t.flags {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// #endregion tracker

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
