package lazyconf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SlotState tags the lifecycle position of one attribute.
type SlotState int

const (
	// StateUnset has no factory and no value; reading it fails with ErrUnset.
	StateUnset SlotState = iota
	// StatePending holds a factory that has not run yet.
	StatePending
	// StateLoaded holds the memoized factory result.
	StateLoaded
	// StateWriteOncePending waits for exactly one SetOnce.
	StateWriteOncePending
	// StateWriteOnceSet holds the value written by SetOnce.
	StateWriteOnceSet
)

func (s SlotState) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StatePending:
		return "pending"
	case StateLoaded:
		return "loaded"
	case StateWriteOncePending:
		return "write-once-pending"
	case StateWriteOnceSet:
		return "write-once-set"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// HasValue reports whether the state carries a memoized value.
func (s SlotState) HasValue() bool {
	return s == StateLoaded || s == StateWriteOnceSet
}

// Factory computes an attribute value the first time it is read. The context
// carries the chain of attributes currently being evaluated; factories that
// read other attributes must pass it along so cycles are reported instead of
// blocking.
type Factory func(ctx context.Context) (any, error)

// Value returns a Factory that yields v.
func Value(v any) Factory {
	return func(context.Context) (any, error) {
		return v, nil
	}
}

// Func adapts a zero-argument function to a Factory. The adapted function
// has no context to pass on, so it must not read attributes of the mapping it
// is registered on; use a Factory with GetContext for that.
func Func(fn func() (any, error)) Factory {
	if fn == nil {
		return nil
	}
	return func(context.Context) (any, error) {
		return fn()
	}
}

const flightKey = "slot"

type slot struct {
	name string
	doc  string

	mu        sync.Mutex
	state     SlotState
	factory   Factory
	value     any
	writeOnce bool

	flight singleflight.Group
}

func newSlot(name string, factory Factory, cfg attrConfig) (*slot, error) {
	s := &slot{name: name, doc: cfg.doc, writeOnce: cfg.writeOnce}
	switch {
	case cfg.writeOnce && factory != nil:
		return nil, fmt.Errorf("lazyconf: write-once attribute %q cannot take a factory", name)
	case cfg.writeOnce && cfg.preloaded:
		s.state = StateWriteOnceSet
		s.value = cfg.value
	case cfg.writeOnce:
		s.state = StateWriteOncePending
	case cfg.preloaded:
		s.state = StateLoaded
		s.value = cfg.value
	case factory != nil:
		s.state = StatePending
		s.factory = factory
	default:
		s.state = StateUnset
	}
	return s, nil
}

// peek returns the state and any memoized value without evaluating.
func (s *slot) peek() (SlotState, any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.value
}

func (s *slot) evaluate(ctx context.Context, logger EvaluationLogger) (any, error) {
	state, value := s.peek()
	switch state {
	case StateLoaded, StateWriteOnceSet:
		return value, nil
	case StateUnset, StateWriteOncePending:
		return nil, slotErr("get", s.name, ErrUnset)
	}

	frame := frameFrom(ctx)
	if frame.contains(s) {
		return nil, &CycleError{Chain: append(frame.names(), s.name)}
	}

	if err := ctx.Err(); err != nil {
		return nil, slotErr("get", s.name, err)
	}

	// A caller whose ctx ends stops waiting. The factory keeps running and
	// still memoizes its result for later readers.
	ch := s.flight.DoChan(flightKey, func() (any, error) {
		return s.load(ctx, logger)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, slotErr("get", s.name, ctx.Err())
	}
}

func (s *slot) load(ctx context.Context, logger EvaluationLogger) (any, error) {
	s.mu.Lock()
	if s.state.HasValue() {
		value := s.value
		s.mu.Unlock()
		return value, nil
	}
	if s.state != StatePending || s.factory == nil {
		s.mu.Unlock()
		return nil, slotErr("get", s.name, ErrUnset)
	}
	factory := s.factory
	s.mu.Unlock()

	start := time.Now()
	value, err := factory(withFrame(ctx, s))
	logger.LogEvaluation(EvaluationEvent{
		Key:      s.name,
		Engine:   "factory",
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, slotErr("evaluate", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoaded
	s.value = value
	s.factory = nil
	return value, nil
}

func (s *slot) setOnce(value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateWriteOncePending:
		s.state = StateWriteOnceSet
		s.value = value
		return nil
	case StateWriteOnceSet:
		return slotErr("set", s.name, ErrAlreadySet)
	default:
		return slotErr("set", s.name, ErrNotWriteOnce)
	}
}

// preload stores value as already computed, keeping write-once slots write-once.
func (s *slot) preload(value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeOnce {
		s.state = StateWriteOnceSet
	} else {
		s.state = StateLoaded
	}
	s.value = value
	s.factory = nil
}

func (s *slot) clone() *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &slot{
		name:      s.name,
		doc:       s.doc,
		state:     s.state,
		factory:   s.factory,
		value:     s.value,
		writeOnce: s.writeOnce,
	}
}

// slotTable keeps attribute slots in registration order.
type slotTable struct {
	mu    sync.RWMutex
	order []string
	slots map[string]*slot
}

func newSlotTable() *slotTable {
	return &slotTable{slots: make(map[string]*slot)}
}

func (t *slotTable) register(s *slot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.slots[s.name]; exists {
		return slotErr("register", s.name, ErrDuplicateAttribute)
	}
	t.slots[s.name] = s
	t.order = append(t.order, s.name)
	return nil
}

// reset replaces the slot for s.name, keeping its original position.
func (t *slotTable) reset(s *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.slots[s.name]; !exists {
		t.order = append(t.order, s.name)
	}
	t.slots[s.name] = s
}

func (t *slotTable) lookup(name string) (*slot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.slots[name]
	return s, ok
}

func (t *slotTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *slotTable) clone() *slotTable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := &slotTable{
		order: make([]string, len(t.order)),
		slots: make(map[string]*slot, len(t.slots)),
	}
	copy(out.order, t.order)
	for name, s := range t.slots {
		out.slots[name] = s.clone()
	}
	return out
}

type frameKey struct{}

// evalFrame is one link of the in-progress evaluation chain carried by ctx.
type evalFrame struct {
	slot   *slot
	parent *evalFrame
}

func withFrame(ctx context.Context, s *slot) context.Context {
	return context.WithValue(ctx, frameKey{}, &evalFrame{slot: s, parent: frameFrom(ctx)})
}

func frameFrom(ctx context.Context) *evalFrame {
	frame, _ := ctx.Value(frameKey{}).(*evalFrame)
	return frame
}

func (f *evalFrame) contains(s *slot) bool {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.slot == s {
			return true
		}
	}
	return false
}

func (f *evalFrame) names() []string {
	var out []string
	for cur := f; cur != nil; cur = cur.parent {
		out = append(out, cur.slot.name)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
