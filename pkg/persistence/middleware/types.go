// Package middleware wraps memory stores with behavior applied on the way
// in, such as masking secrets before they are persisted.
package middleware

import "github.com/aretw0/cortex/pkg/ports"

// Middleware allows wrapping a MemoryStore to add behavior.
type Middleware func(ports.MemoryStore) ports.MemoryStore

// Chain applies mws so that the first one is the outermost.
func Chain(store ports.MemoryStore, mws ...Middleware) ports.MemoryStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
