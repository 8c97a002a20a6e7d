package social

import (
	"fmt"
	"slices"
	"sync"

	"example.com/fitsocial/internal/domain"
)

// graph stores following sets and the derived follower mirror. Both maps are
// only touched under mu so readers never see them disagree.
type graph struct {
	mu        sync.RWMutex
	following map[string]map[string]struct{}
	followers map[string]map[string]struct{}
}

func newGraph() *graph {
	return &graph{
		following: make(map[string]map[string]struct{}),
		followers: make(map[string]map[string]struct{}),
	}
}

// add reports whether the edge was newly created.
func (g *graph) add(viewerID, targetID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.following[viewerID]
	if !ok {
		set = make(map[string]struct{})
		g.following[viewerID] = set
	}
	if _, exists := set[targetID]; exists {
		return false
	}
	set[targetID] = struct{}{}

	mirror, ok := g.followers[targetID]
	if !ok {
		mirror = make(map[string]struct{})
		g.followers[targetID] = mirror
	}
	mirror[viewerID] = struct{}{}
	return true
}

// remove reports whether an edge was deleted.
func (g *graph) remove(viewerID, targetID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	set := g.following[viewerID]
	if _, exists := set[targetID]; !exists {
		return false
	}
	delete(set, targetID)
	if len(set) == 0 {
		delete(g.following, viewerID)
	}
	if mirror := g.followers[targetID]; mirror != nil {
		delete(mirror, viewerID)
		if len(mirror) == 0 {
			delete(g.followers, targetID)
		}
	}
	return true
}

func (g *graph) has(viewerID, targetID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.following[viewerID][targetID]
	return ok
}

func (g *graph) followingOf(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.following[id])
}

func (g *graph) followersOf(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.followers[id])
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Follow adds targetID to viewerID's following set. Repeating an existing follow
// is a no-op; the returned bool reports whether anything changed.
func (e *Engine) Follow(viewerID, targetID string) (bool, error) {
	if viewerID == targetID {
		return false, fmt.Errorf("%w: user %s cannot follow themselves", domain.ErrInvalidOperation, viewerID)
	}
	if _, err := e.registry.Get(viewerID); err != nil {
		return false, err
	}
	if _, err := e.registry.Get(targetID); err != nil {
		return false, err
	}
	return e.graph.add(viewerID, targetID), nil
}

// Unfollow removes targetID from viewerID's following set. Removing an absent
// edge is a no-op.
func (e *Engine) Unfollow(viewerID, targetID string) bool {
	return e.graph.remove(viewerID, targetID)
}

// IsFollowing reports whether viewerID follows targetID.
func (e *Engine) IsFollowing(viewerID, targetID string) bool {
	return e.graph.has(viewerID, targetID)
}

// Following returns the ids viewerID follows, sorted.
func (e *Engine) Following(viewerID string) []string {
	return e.graph.followingOf(viewerID)
}

// Followers returns the ids following targetID, sorted.
func (e *Engine) Followers(targetID string) []string {
	return e.graph.followersOf(targetID)
}
