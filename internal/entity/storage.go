package entity

import (
	"encoding/binary"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/tilesim/server/internal/core/arena"
)

// Storage is the dense array of persistent entity records. Slot 0 is the
// null index and is never handed out; indices are never reused.
type Storage struct {
	records []Entity // len = capacity + 1
	count   uint32
}

// NewStorage reserves capacity records from the permanent arena.
func NewStorage(a *arena.Arena, capacity int) *Storage {
	return &Storage{records: arena.PushArray[Entity](a, capacity+1)}
}

// Add copies e into the next free slot and returns its storage index, or 0
// when storage is full.
func (s *Storage) Add(e Entity) uint32 {
	if int(s.count)+1 >= len(s.records) {
		return 0
	}
	s.count++
	e.StorageIndex = s.count
	s.records[s.count] = e
	return s.count
}

// Get returns the stored record, or nil for the null index or an index
// that was never assigned.
func (s *Storage) Get(index uint32) *Entity {
	if index == 0 || index > s.count {
		return nil
	}
	return &s.records[index]
}

// Put overwrites the record at index.
func (s *Storage) Put(index uint32, e Entity) {
	if index == 0 || index > s.count {
		panic("entity: put to unassigned storage index")
	}
	e.StorageIndex = index
	s.records[index] = e
}

func (s *Storage) Count() int    { return int(s.count) }
func (s *Storage) Capacity() int { return len(s.records) - 1 }

// Each visits every assigned record in index order.
func (s *Storage) Each(fn func(index uint32, e *Entity)) {
	for i := uint32(1); i <= s.count; i++ {
		fn(i, &s.records[i])
	}
}

// Digest hashes every assigned record. Two storages with the same records
// have the same digest; volume groups contribute by name.
func (s *Storage) Digest() [32]byte {
	h, _ := blake2b.New256(nil)
	buf := make([]byte, 0, 256)
	for i := uint32(1); i <= s.count; i++ {
		buf = appendRecord(buf[:0], &s.records[i])
		h.Write(buf)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func appendRecord(b []byte, e *Entity) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, e.StorageIndex)
	b = append(b, byte(e.Type))
	b = le.AppendUint32(b, uint32(e.Flags))
	for _, v := range [...]float64{
		e.Pos[0], e.Pos[1], e.Pos[2],
		e.Vel[0], e.Vel[1], e.Vel[2],
		e.WorldPos.Offset[0], e.WorldPos.Offset[1], e.WorldPos.Offset[2],
		e.DistanceRemaining,
		e.WalkableDim[0], e.WalkableDim[1],
		e.WalkableHeight,
	} {
		b = le.AppendUint64(b, math.Float64bits(v))
	}
	b = le.AppendUint32(b, uint32(e.WorldPos.ChunkX))
	b = le.AppendUint32(b, uint32(e.WorldPos.ChunkY))
	b = le.AppendUint32(b, uint32(e.WorldPos.ChunkZ))
	b = le.AppendUint32(b, e.HitPoints)
	b = le.AppendUint32(b, e.HitPointMax)
	b = le.AppendUint32(b, e.Sword)
	b = le.AppendUint32(b, e.FaceDir)
	if e.Updatable {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	name := ""
	if e.Collision != nil {
		name = e.Collision.Name
	}
	b = le.AppendUint16(b, uint16(len(name)))
	return append(b, name...)
}
