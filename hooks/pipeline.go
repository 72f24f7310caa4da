package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ID identifies a registration so it can be removed later. Go functions are
// not comparable, so unregistration is by handle rather than by callback.
type ID uint64

type registration struct {
	id       ID
	priority int
	fn       Func
}

// Pipeline is an ordered registry of lifecycle callbacks. The zero value is
// not usable; construct one with New. Pipelines are safe for concurrent use:
// chain execution iterates a snapshot, so registration during an in-flight
// chain never corrupts iteration.
type Pipeline struct {
	mu sync.RWMutex

	nextID ID

	sync   map[Event][]registration
	async  map[Event][]registration
	global map[string][]registration
	// globalAsync holds asynchronous callbacks for string-keyed events.
	globalAsync map[string][]registration
}

// New constructs an empty pipeline.
func New() *Pipeline {
	return &Pipeline{
		sync:        make(map[Event][]registration),
		async:       make(map[Event][]registration),
		global:      make(map[string][]registration),
		globalAsync: make(map[string][]registration),
	}
}

// insert keeps the list sorted ascending by priority. Equal priorities keep
// registration order, since new entries go after existing ones.
func insert(list []registration, reg registration) []registration {
	i := sort.Search(len(list), func(i int) bool {
		return list[i].priority > reg.priority
	})
	list = append(list, registration{})
	copy(list[i+1:], list[i:])
	list[i] = reg
	return list
}

func remove(list []registration, id ID) ([]registration, bool) {
	for i, reg := range list {
		if reg.id == id {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

// Register adds a synchronous callback for an event. Lower priority runs
// earlier; equal priorities run in registration order.
func (p *Pipeline) Register(event Event, priority int, fn Func) (ID, error) {
	if fn == nil {
		return 0, fmt.Errorf("registering hook for %s: nil callback", event)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.sync[event] = insert(p.sync[event], registration{id: p.nextID, priority: priority, fn: fn})
	return p.nextID, nil
}

// RegisterAsync adds an asynchronous callback for an event. Asynchronous
// callbacks form an independent chain executed via ExecuteAsync.
func (p *Pipeline) RegisterAsync(event Event, priority int, fn Func) (ID, error) {
	if fn == nil {
		return 0, fmt.Errorf("registering async hook for %s: nil callback", event)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.async[event] = insert(p.async[event], registration{id: p.nextID, priority: priority, fn: fn})
	return p.nextID, nil
}

// RegisterGlobal adds a synchronous callback under a caller-chosen name.
func (p *Pipeline) RegisterGlobal(name string, priority int, fn Func) (ID, error) {
	if fn == nil {
		return 0, fmt.Errorf("registering global hook %q: nil callback", name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.global[name] = insert(p.global[name], registration{id: p.nextID, priority: priority, fn: fn})
	return p.nextID, nil
}

// RegisterGlobalAsync adds an asynchronous callback under a caller-chosen name.
func (p *Pipeline) RegisterGlobalAsync(name string, priority int, fn Func) (ID, error) {
	if fn == nil {
		return 0, fmt.Errorf("registering global async hook %q: nil callback", name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.globalAsync[name] = insert(p.globalAsync[name], registration{id: p.nextID, priority: priority, fn: fn})
	return p.nextID, nil
}

// Unregister removes a callback from an event, searching both the
// synchronous and asynchronous lists. It reports whether anything was removed.
func (p *Pipeline) Unregister(event Event, id ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if list, ok := remove(p.sync[event], id); ok {
		p.sync[event] = list
		return true
	}
	if list, ok := remove(p.async[event], id); ok {
		p.async[event] = list
		return true
	}
	return false
}

// UnregisterGlobal removes a callback from a named global event.
func (p *Pipeline) UnregisterGlobal(name string, id ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if list, ok := remove(p.global[name], id); ok {
		p.global[name] = list
		return true
	}
	if list, ok := remove(p.globalAsync[name], id); ok {
		p.globalAsync[name] = list
		return true
	}
	return false
}

// Clear removes all callbacks for the given events, or every event when
// called with no arguments.
func (p *Pipeline) Clear(events ...Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(events) == 0 {
		p.sync = make(map[Event][]registration)
		p.async = make(map[Event][]registration)
		return
	}
	for _, ev := range events {
		delete(p.sync, ev)
		delete(p.async, ev)
	}
}

// ClearGlobal removes all callbacks for the given names, or every named
// event when called with no arguments.
func (p *Pipeline) ClearGlobal(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(names) == 0 {
		p.global = make(map[string][]registration)
		p.globalAsync = make(map[string][]registration)
		return
	}
	for _, name := range names {
		delete(p.global, name)
		delete(p.globalAsync, name)
	}
}

// Count reports the number of callbacks registered for an event across both
// the synchronous and asynchronous lists.
func (p *Pipeline) Count(event Event) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sync[event]) + len(p.async[event])
}

// CountGlobal reports the number of callbacks for a named global event.
func (p *Pipeline) CountGlobal(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.global[name]) + len(p.globalAsync[name])
}

func (p *Pipeline) snapshotSync(event Event) []registration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]registration(nil), p.sync[event]...)
}

func (p *Pipeline) snapshotAsync(event Event) []registration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]registration(nil), p.async[event]...)
}

// invoke runs one callback, converting panics and returned errors into
// failing results so a broken hook halts the chain instead of the process.
func invoke(ctx context.Context, fn Func, hc *Context) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Sprintf("hook panicked: %v", r))
		}
	}()
	out, err := fn(ctx, hc)
	if err != nil {
		return Fail(err.Error())
	}
	if out == nil {
		return Succeed(nil)
	}
	return out
}

// runChain executes callbacks in order, stopping at the first result whose
// Continue is false. Every callback sees the same context.
func runChain(ctx context.Context, regs []registration, hc *Context) *Result {
	for _, reg := range regs {
		res := invoke(ctx, reg.fn, hc)
		if !res.Continue {
			return res
		}
	}
	return Succeed(nil)
}

// ExecuteSync runs the synchronous chain for an event.
func (p *Pipeline) ExecuteSync(ctx context.Context, event Event, hc *Context) *Result {
	return runChain(ctx, p.snapshotSync(event), hc)
}

// ExecuteAsync runs the asynchronous chain for an event and blocks until it
// completes. It is safe to call from inside another hook; see Await.
func (p *Pipeline) ExecuteAsync(ctx context.Context, event Event, hc *Context) *Result {
	regs := p.snapshotAsync(event)
	return Await(ctx, func(ctx context.Context) *Result {
		return runChain(ctx, regs, hc)
	})
}

// ExecuteGlobal runs the synchronous chain for a named global event.
func (p *Pipeline) ExecuteGlobal(ctx context.Context, name string, hc *Context) *Result {
	p.mu.RLock()
	regs := append([]registration(nil), p.global[name]...)
	p.mu.RUnlock()
	return runChain(ctx, regs, hc)
}

// ExecuteGlobalAsync runs the asynchronous chain for a named global event,
// blocking until it completes.
func (p *Pipeline) ExecuteGlobalAsync(ctx context.Context, name string, hc *Context) *Result {
	p.mu.RLock()
	regs := append([]registration(nil), p.globalAsync[name]...)
	p.mu.RUnlock()
	return Await(ctx, func(ctx context.Context) *Result {
		return runChain(ctx, regs, hc)
	})
}
