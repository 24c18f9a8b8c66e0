// Package guard tracks in-flight backup operations so that an interrupt or
// crash leaves no partial artifacts behind.
package guard

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/thoreinstein/qbak/internal/logging"
)

// State describes the lifecycle of a registered operation.
type State int

const (
	// StateActive means the operation is copying and its artifacts are
	// candidates for cleanup.
	StateActive State = iota

	// StateComplete means the final path is real data and must survive
	// cleanup.
	StateComplete
)

// Record is the registry's view of one operation.
type Record struct {
	// FinalPath is the destination the operation intends to produce.
	FinalPath string

	// TempPaths are intermediate artifacts, removed on abort or interrupt.
	TempPaths []string

	// State gates whether FinalPath is removed by CleanupAll.
	State State
}

// Registry tracks active operations and carries the process-wide interrupt
// flag. A fresh Registry is constructed per run and injected into the engine.
type Registry struct {
	mu          sync.Mutex
	records     map[uuid.UUID]Record
	interrupted atomic.Bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[uuid.UUID]Record)}
}

// Register records a new operation targeting finalPath and returns its guard.
func (r *Registry) Register(finalPath string) *Guard {
	id := uuid.New()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = Record{FinalPath: finalPath, State: StateActive}

	return &Guard{registry: r, id: id}
}

// Interrupt sets the interrupt flag. The engine observes it between copy
// chunks and between directory entries.
func (r *Registry) Interrupt() {
	r.interrupted.Store(true)
}

// Interrupted reports whether an interrupt has been requested.
func (r *Registry) Interrupted() bool {
	return r.interrupted.Load()
}

// Active returns the number of registered operations. Intended for tests and
// the signal handler's exit decision.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// CleanupAll drains every registered operation: temp artifacts are always
// removed, and final paths of operations that never completed are removed
// too. Removal failures are logged and never stop the drain.
func (r *Registry) CleanupAll(ctx context.Context) {
	r.mu.Lock()
	drained := r.records
	r.records = make(map[uuid.UUID]Record)
	r.mu.Unlock()

	log := logging.FromContext(ctx)
	for _, rec := range drained {
		for _, tmp := range rec.TempPaths {
			if err := os.RemoveAll(tmp); err != nil && !os.IsNotExist(err) {
				log.Warn("could not remove temporary file", "path", tmp, "error", err)
			}
		}
		if rec.State == StateComplete {
			continue
		}
		if rec.FinalPath == "" {
			continue
		}
		if err := os.RemoveAll(rec.FinalPath); err != nil && !os.IsNotExist(err) {
			log.Warn("could not remove partial backup", "path", rec.FinalPath, "error", err)
		}
	}
}

// Guard is the per-operation handle. Exactly one of Complete or Abort ends
// it; both are safe to call more than once, and a released guard ignores all
// further calls.
type Guard struct {
	registry *Registry
	id       uuid.UUID
	released bool
	mu       sync.Mutex
}

// AddTemp records a temporary artifact for cleanup on abort or interrupt.
func (g *Guard) AddTemp(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}

	r := g.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[g.id]
	if !ok {
		return
	}
	rec.TempPaths = append(rec.TempPaths, path)
	r.records[g.id] = rec
}

// SetFinalPath updates the destination, used when collision re-resolution
// picks a new name mid-operation.
func (g *Guard) SetFinalPath(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}

	r := g.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[g.id]
	if !ok {
		return
	}
	rec.FinalPath = path
	r.records[g.id] = rec
}

// Complete marks the operation successful and deregisters it. The final path
// is kept; any leftover temp paths are removed best-effort.
func (g *Guard) Complete() {
	g.release(true)
}

// Abort removes the operation's temp artifacts and deregisters it.
func (g *Guard) Abort() {
	g.release(false)
}

func (g *Guard) release(complete bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}
	g.released = true

	r := g.registry
	r.mu.Lock()
	rec, ok := r.records[g.id]
	delete(r.records, g.id)
	r.mu.Unlock()
	if !ok {
		return
	}

	for _, tmp := range rec.TempPaths {
		os.RemoveAll(tmp)
	}
	if !complete && rec.FinalPath != "" {
		os.RemoveAll(rec.FinalPath)
	}
}
