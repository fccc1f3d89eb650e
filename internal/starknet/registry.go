package starknet

import (
	"context"
	"fmt"
	"sync"
)

// InjectionPoints are the places a wallet can be injected, in probe order.
var InjectionPoints = []string{"starknet", "starknet_argentX", "starknet_braavos"}

// Registry holds the wallets currently injected at each known point.
type Registry struct {
	mu      sync.RWMutex
	wallets map[string]Wallet
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{wallets: make(map[string]Wallet)}
}

// Inject places w at point. Unknown points are rejected.
func (r *Registry) Inject(point string, w Wallet) error {
	if !knownPoint(point) {
		return fmt.Errorf("starknet: unknown injection point %q", point)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if w == nil {
		delete(r.wallets, point)
		return nil
	}
	r.wallets[point] = w
	return nil
}

// Detect returns the first injected wallet in probe order, or nil.
func (r *Registry) Detect() (string, Wallet) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, point := range InjectionPoints {
		if w, ok := r.wallets[point]; ok {
			return point, w
		}
	}
	return "", nil
}

// PassiveProvider walks the injection points in order and returns the first
// provider any wallet exposes, preferring its account's provider. It never
// prompts for authorization.
func (r *Registry) PassiveProvider(ctx context.Context) Provider {
	r.mu.RLock()
	wallets := make([]Wallet, 0, len(InjectionPoints))
	for _, point := range InjectionPoints {
		if w, ok := r.wallets[point]; ok {
			wallets = append(wallets, w)
		}
	}
	r.mu.RUnlock()

	for _, w := range wallets {
		if acct, err := w.Account(ctx); err == nil && acct != nil {
			if p := acct.Provider(); p != nil {
				return p
			}
		}
		if p := w.Provider(); p != nil {
			return p
		}
	}
	return nil
}

func knownPoint(point string) bool {
	for _, p := range InjectionPoints {
		if p == point {
			return true
		}
	}
	return false
}
