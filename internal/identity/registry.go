// Package identity holds the in-memory registry of user profiles the engine resolves ids against.
package identity

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"example.com/fitsocial/internal/domain"
)

// Registry resolves user ids to profiles.
type Registry interface {
	Get(id string) (domain.UserProfile, error)
	List() []domain.UserProfile
}

// Directory is a concurrency safe in-memory Registry.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]domain.UserProfile
}

// NewDirectory constructs an empty Directory.
func NewDirectory() *Directory {
	return &Directory{profiles: make(map[string]domain.UserProfile)}
}

// Put inserts or replaces a profile.
func (d *Directory) Put(profile domain.UserProfile) error {
	if strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("%w: profile id is required", domain.ErrInvalidOperation)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[profile.ID] = profile.Clone()
	return nil
}

// Get implements Registry.
func (d *Directory) Get(id string) (domain.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	profile, ok := d.profiles[id]
	if !ok {
		return domain.UserProfile{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return profile.Clone(), nil
}

// List implements Registry, ordered by id.
func (d *Directory) List() []domain.UserProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.UserProfile, 0, len(d.profiles))
	for _, profile := range d.profiles {
		out = append(out, profile.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
