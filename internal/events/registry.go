package events

import (
	"sync"

	"github.com/google/uuid"
)

// Sink receives encoded frames. Enqueue must not block; it reports false
// when the frame was dropped.
type Sink interface {
	Enqueue(frame []byte) bool
}

// Registry indexes live connections by subscribed symbol and by user. One
// user may hold several connections and each receives that user's events.
type Registry struct {
	mu       sync.RWMutex
	bySymbol map[string]map[Sink]struct{}
	byUser   map[uuid.UUID]map[Sink]struct{}
	symbols  map[Sink]map[string]struct{}
	owners   map[Sink]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		bySymbol: make(map[string]map[Sink]struct{}),
		byUser:   make(map[uuid.UUID]map[Sink]struct{}),
		symbols:  make(map[Sink]map[string]struct{}),
		owners:   make(map[Sink]uuid.UUID),
	}
}

// Register adds a connection. userID is uuid.Nil for anonymous connections,
// which only ever see price events.
func (r *Registry) Register(s Sink, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols[s] = make(map[string]struct{})
	if userID == uuid.Nil {
		return
	}
	r.owners[s] = userID
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[Sink]struct{})
		r.byUser[userID] = set
	}
	set[s] = struct{}{}
}

// Unregister removes a connection from every index.
func (r *Registry) Unregister(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for symbol := range r.symbols[s] {
		removeFrom(r.bySymbol, symbol, s)
	}
	delete(r.symbols, s)
	if userID, ok := r.owners[s]; ok {
		removeFrom(r.byUser, userID, s)
		delete(r.owners, s)
	}
}

func removeFrom[K comparable](index map[K]map[Sink]struct{}, key K, s Sink) {
	set := index[key]
	delete(set, s)
	if len(set) == 0 {
		delete(index, key)
	}
}

// Subscribe reports false for connections that are not registered.
func (r *Registry) Subscribe(s Sink, symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.symbols[s]
	if !ok {
		return false
	}
	subs[symbol] = struct{}{}
	set, ok := r.bySymbol[symbol]
	if !ok {
		set = make(map[Sink]struct{})
		r.bySymbol[symbol] = set
	}
	set[s] = struct{}{}
	return true
}

func (r *Registry) Unsubscribe(s Sink, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.symbols[s]; ok {
		delete(subs, symbol)
	}
	removeFrom(r.bySymbol, symbol, s)
}

// BroadcastSymbol delivers frame to every subscriber of symbol and returns
// the number of frames dropped on full buffers.
func (r *Registry) BroadcastSymbol(symbol string, frame []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return deliver(r.bySymbol[symbol], frame)
}

// SendToUser delivers frame to every connection of userID.
func (r *Registry) SendToUser(userID uuid.UUID, frame []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return deliver(r.byUser[userID], frame)
}

func deliver(set map[Sink]struct{}, frame []byte) int {
	dropped := 0
	for s := range set {
		if !s.Enqueue(frame) {
			dropped++
		}
	}
	return dropped
}

// Stats returns the number of connections, users and subscribed symbols.
func (r *Registry) Stats() (connections, users, symbols int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.symbols), len(r.byUser), len(r.bySymbol)
}
