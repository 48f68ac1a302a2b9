package persist

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/world"
)

// EntityRow is one entity_snapshots row. Placement lives in columns so it
// can be queried; the rest of the record rides in a msgpack payload.
type EntityRow struct {
	StorageIndex int32
	Type         int16
	Flags        int32
	ChunkX       *int32 // nil when non-spatial
	ChunkY       *int32
	ChunkZ       *int32
	OffsetX      float64
	OffsetY      float64
	OffsetZ      float64
	Collision    string
	Payload      []byte
}

type entityPayload struct {
	Vel               [3]float64 `msgpack:"vel"`
	HitPoints         uint32     `msgpack:"hp"`
	HitPointMax       uint32     `msgpack:"hp_max"`
	Sword             uint32     `msgpack:"sword,omitempty"`
	FaceDir           uint32     `msgpack:"face"`
	DistanceRemaining float64    `msgpack:"dist,omitempty"`
	WalkableDim       [2]float64 `msgpack:"walk_dim,omitempty"`
	WalkableHeight    float64    `msgpack:"walk_h,omitempty"`
}

// RowFromEntity encodes a stored entity. Frame-scoped state (region
// position, the simming flag) is not persisted.
func RowFromEntity(e *entity.Entity) (EntityRow, error) {
	payload, err := msgpack.Marshal(&entityPayload{
		Vel:               e.Vel,
		HitPoints:         e.HitPoints,
		HitPointMax:       e.HitPointMax,
		Sword:             e.Sword,
		FaceDir:           e.FaceDir,
		DistanceRemaining: e.DistanceRemaining,
		WalkableDim:       e.WalkableDim,
		WalkableHeight:    e.WalkableHeight,
	})
	if err != nil {
		return EntityRow{}, fmt.Errorf("encode entity %d: %w", e.StorageIndex, err)
	}
	flags := e.Flags
	flags.Clear(entity.FlagSimming)
	row := EntityRow{
		StorageIndex: int32(e.StorageIndex),
		Type:         int16(e.Type),
		Flags:        int32(flags),
		Payload:      payload,
	}
	if e.Collision != nil {
		row.Collision = e.Collision.Name
	}
	if e.IsSpatial() && e.WorldPos.IsValid() {
		p := e.WorldPos
		row.ChunkX, row.ChunkY, row.ChunkZ = &p.ChunkX, &p.ChunkY, &p.ChunkZ
		row.OffsetX, row.OffsetY, row.OffsetZ = p.Offset.X(), p.Offset.Y(), p.Offset.Z()
	}
	return row, nil
}

// Restore decodes the row back into an entity. shape resolves collision
// group names; an unknown name is an error.
func (r EntityRow) Restore(shape func(name string) *entity.CollisionVolumeGroup) (entity.Entity, error) {
	var p entityPayload
	if err := msgpack.Unmarshal(r.Payload, &p); err != nil {
		return entity.Entity{}, fmt.Errorf("decode entity %d: %w", r.StorageIndex, err)
	}
	e := entity.Entity{
		StorageIndex:      uint32(r.StorageIndex),
		Type:              entity.Type(r.Type),
		Flags:             entity.Flags(r.Flags),
		Vel:               mgl64.Vec3(p.Vel),
		HitPoints:         p.HitPoints,
		HitPointMax:       p.HitPointMax,
		Sword:             p.Sword,
		FaceDir:           p.FaceDir,
		DistanceRemaining: p.DistanceRemaining,
		WalkableDim:       mgl64.Vec2(p.WalkableDim),
		WalkableHeight:    p.WalkableHeight,
		WorldPos:          world.NullPosition(),
	}
	if r.Collision != "" {
		e.Collision = shape(r.Collision)
		if e.Collision == nil {
			return entity.Entity{}, fmt.Errorf("entity %d: unknown collision shape %q", r.StorageIndex, r.Collision)
		}
	}
	if r.ChunkX != nil && r.ChunkY != nil && r.ChunkZ != nil {
		e.WorldPos = world.Position{
			ChunkX: *r.ChunkX,
			ChunkY: *r.ChunkY,
			ChunkZ: *r.ChunkZ,
			Offset: mgl64.Vec3{r.OffsetX, r.OffsetY, r.OffsetZ},
		}
	} else if e.IsSpatial() {
		return entity.Entity{}, fmt.Errorf("entity %d: spatial entity without a chunk", r.StorageIndex)
	}
	return e, nil
}

// CaptureRows encodes every stored entity in storage-index order.
func CaptureRows(s *entity.Storage) ([]EntityRow, error) {
	rows := make([]EntityRow, 0, s.Count())
	var firstErr error
	s.Each(func(_ uint32, e *entity.Entity) {
		if firstErr != nil {
			return
		}
		row, err := RowFromEntity(e)
		if err != nil {
			firstErr = err
			return
		}
		rows = append(rows, row)
	})
	return rows, firstErr
}
