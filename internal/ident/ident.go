// Package ident assigns short, stable, collision-free output identifiers to
// durable conversation keys.
package ident

// prefixLengths are the candidate identifier lengths tried before falling
// back to the full durable key. Bounded escalation keeps names derived from
// the real key instead of an arbitrary counter suffix.
var prefixLengths = []int{8, 12}

// Resolution is the outcome of assigning an identifier to one key.
type Resolution struct {
	Identifier string
	// Exhausted reports that every prefix candidate was owned by another
	// key and the full durable key had to be used.
	Exhausted bool
}

// Registry is the run-scoped lookup table from candidate identifier to
// durable key. It is built fresh each run: seeded from existing artifacts,
// then extended as new keys are resolved. Not safe for concurrent use; the
// export pipeline funnels all assignment through one goroutine.
type Registry struct {
	byCandidate map[string]string // candidate identifier -> durable key
	byKey       map[string]string // durable key -> assigned identifier
}

func NewRegistry() *Registry {
	return &Registry{
		byCandidate: make(map[string]string),
		byKey:       make(map[string]string),
	}
}

// Seed records an identifier recovered from a previously exported artifact.
// The first occurrence of a candidate wins; later duplicates are ignored so
// an already-claimed identifier is never silently reassigned. The key keeps
// the identifier it was seen with, so re-runs re-derive the same names.
func (r *Registry) Seed(candidate, key string) {
	if candidate == "" || key == "" {
		return
	}
	if _, taken := r.byCandidate[candidate]; taken {
		return
	}
	r.byCandidate[candidate] = key
	if _, ok := r.byKey[key]; !ok {
		r.byKey[key] = candidate
	}
}

// Resolve assigns an output identifier for key. A key seen before in this
// run (or seeded from an existing artifact) resolves to the identifier it
// already owns. Otherwise prefixes of the key are tried in escalating
// length; if all collide with other keys, the full key is the identifier.
// Within one run the mapping is injective.
//
// For a key no longer than a prefix length, the full key stands in for that
// escalation step, so reaching it is ordinary escalation. Exhausted is set
// only when a collision at the longest proper prefix forced the fallback.
func (r *Registry) Resolve(key string) Resolution {
	if id, ok := r.byKey[key]; ok {
		return Resolution{Identifier: id}
	}

	exhausted := false
	for _, n := range prefixLengths {
		if n >= len(key) {
			break
		}
		candidate := key[:n]
		if owner, taken := r.byCandidate[candidate]; taken && owner != key {
			exhausted = n == prefixLengths[len(prefixLengths)-1]
			continue
		}
		r.claim(candidate, key)
		return Resolution{Identifier: candidate}
	}

	r.claim(key, key)
	return Resolution{Identifier: key, Exhausted: exhausted}
}

func (r *Registry) claim(candidate, key string) {
	r.byCandidate[candidate] = key
	r.byKey[key] = candidate
}
