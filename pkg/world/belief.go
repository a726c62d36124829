package world

import (
	"sort"
	"sync"
	"time"
)

// defaultSightingTTL is how long a perception result stays trustworthy
// when the belief store is created without an explicit TTL.
const defaultSightingTTL = 30 * time.Second

// Sighting is one remembered perception result.
type Sighting struct {
	// Object is the perceived object.
	Object Object `json:"object"`

	// SeenAt is when the object was perceived.
	SeenAt time.Time `json:"seen_at"`

	// ExpiresAt is when the sighting goes stale.
	ExpiresAt time.Time `json:"expires_at"`
}

// Belief is the executive's perception memory: object sightings with a
// staleness TTL. A stale sighting is as good as no sighting; goals that
// need the object re-perceive instead of trusting old poses.
type Belief struct {
	mu        sync.Mutex
	ttl       time.Duration
	sightings map[string]Sighting
}

// NewBelief creates a belief store. A non-positive ttl selects the default.
func NewBelief(ttl time.Duration) *Belief {
	if ttl <= 0 {
		ttl = defaultSightingTTL
	}
	return &Belief{
		ttl:       ttl,
		sightings: make(map[string]Sighting),
	}
}

// Observe records a fresh sighting of obj, replacing any previous one.
func (b *Belief) Observe(obj Object) {
	now := time.Now()
	b.mu.Lock()
	b.sightings[obj.ID] = Sighting{
		Object:    obj,
		SeenAt:    now,
		ExpiresAt: now.Add(b.ttl),
	}
	b.mu.Unlock()
}

// Forget drops the sighting for id, if any.
func (b *Belief) Forget(id string) {
	b.mu.Lock()
	delete(b.sightings, id)
	b.mu.Unlock()
}

// Lookup returns the fresh sighting for id. Expired sightings are pruned
// and reported as misses.
func (b *Belief) Lookup(id string) (Sighting, bool) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sightings[id]
	if !ok {
		return Sighting{}, false
	}
	if now.After(s.ExpiresAt) {
		delete(b.sightings, id)
		return Sighting{}, false
	}
	return s, true
}

// LookupByType returns the fresh sightings of objects of the given type,
// sorted by object ID.
func (b *Belief) LookupByType(objType string) []Sighting {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Sighting
	for _, s := range b.sightings {
		if s.Object.Type != objType || now.After(s.ExpiresAt) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Object.ID < out[j].Object.ID })
	return out
}

// Snapshot returns every fresh sighting, sorted by object ID.
func (b *Belief) Snapshot() []Sighting {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sighting, 0, len(b.sightings))
	for _, s := range b.sightings {
		if now.After(s.ExpiresAt) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Object.ID < out[j].Object.ID })
	return out
}

// Prune drops expired sightings and returns how many were dropped.
func (b *Belief) Prune() int {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for id, s := range b.sightings {
		if now.After(s.ExpiresAt) {
			delete(b.sightings, id)
			dropped++
		}
	}
	return dropped
}
