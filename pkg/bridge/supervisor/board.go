// Package supervisor tracks connection liveness for every endpoint the
// bridge talks to and re-attempts the offline ones on a fixed cadence.
// Adapters record connect outcomes on the Board; the Supervisor is the only
// component that initiates reconnects.
package supervisor

import (
	"fmt"
	"sync"
	"time"
)

// Status is one endpoint's last known connection state.
type Status struct {
	Connected bool      `json:"connected"`
	LastCheck time.Time `json:"last_check"`
	Message   string    `json:"message"`
}

// Tally is the connected/total pair for one endpoint kind.
type Tally struct {
	Connected int `json:"connected"`
	Total     int `json:"total"`
}

// key identifies an endpoint by source kind and record ID.
type key struct {
	kind string
	id   uint
}

// Board is the shared liveness table. The polling engine consults it before
// touching a device, and the status API serves it verbatim.
type Board struct {
	mu      sync.RWMutex
	entries map[key]Status
}

// NewBoard returns an empty board. Endpoints never attempted report a zero
// Status, i.e. not connected.
func NewBoard() *Board {
	return &Board{entries: make(map[key]Status)}
}

// Set records the outcome of a connection attempt.
func (b *Board) Set(kind string, id uint, connected bool, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key{kind, id}] = Status{Connected: connected, LastCheck: time.Now().UTC(), Message: message}
}

// Get returns the endpoint's recorded status.
func (b *Board) Get(kind string, id uint) Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries[key{kind, id}]
}

// Connected reports whether the endpoint's last attempt succeeded.
func (b *Board) Connected(kind string, id uint) bool {
	return b.Get(kind, id).Connected
}

// Snapshot copies the whole table, keyed "kind/id".
func (b *Board) Snapshot() map[string]Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]Status, len(b.entries))
	for k, v := range b.entries {
		out[fmt.Sprintf("%s/%d", k.kind, k.id)] = v
	}
	return out
}

// Counts tallies connected and total endpoints per kind.
func (b *Board) Counts() map[string]Tally {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]Tally)
	for k, v := range b.entries {
		t := out[k.kind]
		t.Total++
		if v.Connected {
			t.Connected++
		}
		out[k.kind] = t
	}
	return out
}
