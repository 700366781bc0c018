// Package secrets holds credentials that may be rotated while the service runs.
package secrets

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
)

// ErrPinnedRemoved rejects a reload that would clear a pinned secret.
var ErrPinnedRemoved = errors.New("secrets: pinned secret removed")

// Loader retrieves secrets from a source (config, file, remote vault, etc.).
type Loader func() (map[string]string, error)

// Vault serves secrets read on every request. Values are swapped whole on
// reload, so readers never see a half-applied rotation.
type Vault struct {
	values atomic.Pointer[map[string]string]
	loader Loader
	pinned []string
}

// NewVault creates a Vault, calling loader once for the initial values.
// A pinned key that has a value can be rotated but not cleared: losing the
// API key from every source must not silently switch authentication off.
func NewVault(loader Loader, pinned ...string) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	v := &Vault{loader: loader, pinned: pinned}
	v.values.Store(&vals)
	return v, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	return (*v.values.Load())[key]
}

// Getter returns a func reading key on every call.
func (v *Vault) Getter(key string) func() string {
	return func() string { return v.Get(key) }
}

// Reload calls the loader and swaps in the new values. It returns the
// sorted names of the keys whose value changed. On error the current
// values stay in place.
func (v *Vault) Reload() ([]string, error) {
	next, err := v.loader()
	if err != nil {
		return nil, fmt.Errorf("reload secrets: %w", err)
	}
	cur := *v.values.Load()
	for _, k := range v.pinned {
		if cur[k] != "" && next[k] == "" {
			return nil, fmt.Errorf("reload secrets: %w: %s", ErrPinnedRemoved, k)
		}
	}

	var rotated []string
	for k, old := range cur {
		if next[k] != old {
			rotated = append(rotated, k)
		}
	}
	for k := range next {
		if _, had := cur[k]; !had {
			rotated = append(rotated, k)
		}
	}
	v.values.Store(&next)
	slices.Sort(rotated)
	return rotated, nil
}
