package arena

import (
	"fmt"
	"unsafe"
)

// Arena is a bump allocator over a fixed byte budget. Nothing is freed
// individually; memory comes back only through EndTemp or Reset.
// Accessed only from the game loop goroutine, no locks.
//
// The Go heap owns the actual objects. The arena owns the budget and the
// lifetime: anything pushed inside a temp scope must not be used after the
// scope ends.
type Arena struct {
	name      string
	size      int
	used      int
	tempCount int
}

// TempMemory is a saved high-water mark returned by BeginTemp.
type TempMemory struct {
	arena *Arena
	used  int
	depth int
}

func New(name string, size int) *Arena {
	if size <= 0 {
		panic(fmt.Sprintf("arena %s: size must be positive, got %d", name, size))
	}
	return &Arena{name: name, size: size}
}

func (a *Arena) Name() string { return a.name }
func (a *Arena) Size() int    { return a.size }
func (a *Arena) Used() int    { return a.used }

// Remaining returns the number of bytes still available.
func (a *Arena) Remaining() int { return a.size - a.used }

// PushSize reserves n bytes. Overflow panics; there is no partial allocation.
func (a *Arena) PushSize(n int) {
	if n < 0 {
		panic(fmt.Sprintf("arena %s: negative push %d", a.name, n))
	}
	if a.used+n > a.size {
		panic(fmt.Sprintf("arena %s: overflow (used %d + %d > %d)", a.name, a.used, n, a.size))
	}
	a.used += n
}

// PushStruct reserves space for one T and returns a zeroed value.
func PushStruct[T any](a *Arena) *T {
	var zero T
	a.PushSize(int(unsafe.Sizeof(zero)))
	return new(T)
}

// PushArray reserves space for n values of T and returns a zeroed slice of
// length n.
func PushArray[T any](a *Arena, n int) []T {
	var zero T
	a.PushSize(n * int(unsafe.Sizeof(zero)))
	return make([]T, n)
}

// Grow appends one zero T to an index-addressed backing slice and returns
// the new element's index. Backing slices replace pointer-linked lists.
func Grow[T any](a *Arena, s *[]T) int32 {
	var zero T
	a.PushSize(int(unsafe.Sizeof(zero)))
	*s = append(*s, zero)
	return int32(len(*s) - 1)
}

// BeginTemp opens a temporary scope. Scopes nest.
func (a *Arena) BeginTemp() TempMemory {
	a.tempCount++
	return TempMemory{arena: a, used: a.used, depth: a.tempCount}
}

// EndTemp restores the high-water mark saved by BeginTemp. Scopes must be
// closed innermost first.
func (a *Arena) EndTemp(t TempMemory) {
	if t.arena != a {
		panic(fmt.Sprintf("arena %s: temp memory belongs to another arena", a.name))
	}
	if t.depth != a.tempCount {
		panic(fmt.Sprintf("arena %s: temp scope closed out of order (depth %d, open %d)", a.name, t.depth, a.tempCount))
	}
	if a.used < t.used {
		panic(fmt.Sprintf("arena %s: temp scope below saved mark", a.name))
	}
	a.used = t.used
	a.tempCount--
}

// TempCount returns the number of open temp scopes.
func (a *Arena) TempCount() int { return a.tempCount }

// CheckEmpty panics if any temp scope is still open. Called once per frame.
func (a *Arena) CheckEmpty() {
	if a.tempCount != 0 {
		panic(fmt.Sprintf("arena %s: %d temp scope(s) left open", a.name, a.tempCount))
	}
}

// Reset frees everything at once.
func (a *Arena) Reset() {
	a.used = 0
	a.tempCount = 0
}

// SubArena carves a child arena of size bytes out of a.
func (a *Arena) SubArena(name string, size int) *Arena {
	a.PushSize(size)
	return New(name, size)
}
