package engine

import (
	"sync"

	"github.com/cwbudde/algo-fxgraph/kernel"
)

// stateKey addresses one persistent kernel instance: per-node state is keyed
// by node identifier, legacy global effects by effect type so each type gets
// its own process-wide instance.
type stateKey struct {
	global bool
	id     string
}

func nodeKey(nodeID string) stateKey {
	return stateKey{id: nodeID}
}

func globalKey(effectType string) stateKey {
	return stateKey{global: true, id: effectType}
}

// stateStore owns the persistent kernel instances. An instance survives as
// long as its key stays referenced by published snapshots; a key absent from
// two consecutive publishes is pruned, which rides out the crossfade window
// without thrashing.
type stateStore struct {
	mu       sync.Mutex
	registry *kernel.Registry

	procs map[stateKey]kernel.Processor
	types map[stateKey]string

	// absent counts consecutive publishes a key was not referenced by.
	absent map[stateKey]int
}

func newStateStore(registry *kernel.Registry) *stateStore {
	return &stateStore{
		registry: registry,
		procs:    make(map[stateKey]kernel.Processor),
		types:    make(map[stateKey]string),
		absent:   make(map[stateKey]int),
	}
}

// processor returns the persistent instance for a key, creating it on first
// use. A node whose effect type changed is rebuilt from scratch; its old
// state is meaningless for the new kernel.
func (s *stateStore) processor(key stateKey, effectType string, ctx kernel.Context) (kernel.Processor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if proc, ok := s.procs[key]; ok && s.types[key] == effectType {
		return proc, nil
	}

	proc, err := s.registry.New(effectType, ctx)
	if err != nil {
		return nil, err
	}

	s.procs[key] = proc
	s.types[key] = effectType

	return proc, nil
}

// retain records the keys referenced by the snapshot being published and
// prunes every key unreferenced for two consecutive publishes.
func (s *stateStore) retain(live map[stateKey]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.procs {
		if live[key] {
			delete(s.absent, key)
			continue
		}

		s.absent[key]++
		if s.absent[key] >= 2 {
			delete(s.procs, key)
			delete(s.types, key)
			delete(s.absent, key)
		}
	}
}

// reset clears the kernel state addressed by a scope. The global scope
// clears every legacy instance.
func (s *stateStore) reset(scope kernel.Scope) {
	s.mu.Lock()
	var procs []kernel.Processor

	if scope.Global() {
		for key, proc := range s.procs {
			if key.global {
				procs = append(procs, proc)
			}
		}
	} else if proc, ok := s.procs[nodeKey(scope.NodeID())]; ok {
		procs = append(procs, proc)
	}
	s.mu.Unlock()

	for _, proc := range procs {
		proc.Reset()
	}
}

// resetAll clears every live kernel instance.
func (s *stateStore) resetAll() {
	s.mu.Lock()
	procs := make([]kernel.Processor, 0, len(s.procs))
	for _, proc := range s.procs {
		procs = append(procs, proc)
	}
	s.mu.Unlock()

	for _, proc := range procs {
		proc.Reset()
	}
}
