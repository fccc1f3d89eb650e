// Package session holds the live wallet handles established by a connect.
// A Store is owned by whoever constructs the adapters and is injected into
// each of them; there is no package-level session.
package session

import (
	"sync/atomic"

	"github.com/alanyoungcy/shadowmarket/internal/starknet"
)

// Live is the record the wallet adapter stores after a successful connect.
type Live struct {
	Wallet   starknet.Wallet
	Account  starknet.Account
	Provider starknet.Provider
}

// Store is a single-slot holder for the current Live record. The record is
// replaced as a whole, so readers never observe a partially written session.
type Store struct {
	cur atomic.Pointer[Live]
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Get returns the current record, or nil.
func (s *Store) Get() *Live {
	return s.cur.Load()
}

// Set replaces the current record with a copy of l.
func (s *Store) Set(l Live) {
	s.cur.Store(&l)
}

// Clear empties the store. Clearing an empty store is a no-op.
func (s *Store) Clear() {
	s.cur.Store(nil)
}
