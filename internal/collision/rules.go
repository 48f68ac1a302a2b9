// Package collision holds the pairwise collision suppression table.
//
// A rule (a, b) means "a should not collide with b". Rules are directed;
// callers that want symmetric suppression add both directions. Records live
// in an index-addressed backing slice with hash bucket chains and a free
// list, so clearing and re-adding rules never grows the table.
package collision

import (
	"fmt"

	"github.com/tilesim/server/internal/core/arena"
)

const noRule int32 = -1

type rule struct {
	a, b uint32
	next int32
}

// Rules is the suppression table. Not safe for concurrent use.
type Rules struct {
	buckets []int32
	records []rule
	free    int32
	live    int
	freeLen int
	arena   *arena.Arena
}

// NewRules allocates bucketCount chains (a power of two) from a.
func NewRules(a *arena.Arena, bucketCount int) *Rules {
	if bucketCount <= 0 || bucketCount&(bucketCount-1) != 0 {
		panic(fmt.Sprintf("collision: bucket count %d is not a power of two", bucketCount))
	}
	r := &Rules{
		buckets: arena.PushArray[int32](a, bucketCount),
		free:    noRule,
		arena:   a,
	}
	for i := range r.buckets {
		r.buckets[i] = noRule
	}
	return r
}

func (r *Rules) bucket(a uint32) int { return int(a & uint32(len(r.buckets)-1)) }

// Add inserts the directed rule (a, b). Duplicates are not detected.
func (r *Rules) Add(a, b uint32) {
	var i int32
	if r.free != noRule {
		i = r.free
		r.free = r.records[i].next
		r.freeLen--
	} else {
		i = arena.Grow(r.arena, &r.records)
	}
	k := r.bucket(a)
	r.records[i] = rule{a: a, b: b, next: r.buckets[k]}
	r.buckets[k] = i
	r.live++
}

// unlink removes the first (a, b) record and reports whether one existed.
func (r *Rules) unlink(a, b uint32) bool {
	k := r.bucket(a)
	for link := &r.buckets[k]; *link != noRule; link = &r.records[*link].next {
		i := *link
		if rec := r.records[i]; rec.a == a && rec.b == b {
			*link = rec.next
			r.records[i] = rule{next: r.free}
			r.free = i
			r.freeLen++
			r.live--
			return true
		}
	}
	return false
}

// ClearPair removes one (a, b) record. The record must exist.
func (r *Rules) ClearPair(a, b uint32) {
	if !r.unlink(a, b) {
		panic(fmt.Sprintf("collision: no rule (%d, %d) to clear", a, b))
	}
}

// ClearEntity removes every (id, x) record along with its mirror (x, id).
func (r *Rules) ClearEntity(id uint32) {
	for {
		other, ok := r.firstPartner(id)
		if !ok {
			return
		}
		r.unlink(id, other)
		r.unlink(other, id)
	}
}

func (r *Rules) firstPartner(id uint32) (uint32, bool) {
	for i := r.buckets[r.bucket(id)]; i != noRule; i = r.records[i].next {
		if r.records[i].a == id {
			return r.records[i].b, true
		}
	}
	return 0, false
}

// ShouldCollide is false iff the directed rule (a, b) exists.
func (r *Rules) ShouldCollide(a, b uint32) bool {
	if a == 0 || b == 0 {
		panic("collision: null storage index")
	}
	if a == b {
		panic(fmt.Sprintf("collision: entity %d tested against itself", a))
	}
	for i := r.buckets[r.bucket(a)]; i != noRule; i = r.records[i].next {
		if rec := r.records[i]; rec.a == a && rec.b == b {
			return false
		}
	}
	return true
}

// Len returns the number of live rules.
func (r *Rules) Len() int { return r.live }

// FreeLen returns the number of recycled records waiting for reuse.
func (r *Rules) FreeLen() int { return r.freeLen }
