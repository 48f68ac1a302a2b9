package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Snapshot is the full entity table of one run at one tick.
type Snapshot struct {
	Run     uuid.UUID
	Tick    uint64
	Digest  [32]byte
	Rows    []EntityRow
	SavedAt time.Time
}

var entityColumns = []string{
	"run_id", "storage_index", "entity_type", "flags",
	"chunk_x", "chunk_y", "chunk_z",
	"offset_x", "offset_y", "offset_z",
	"collision", "payload",
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// CreateRun registers a new world run and returns its id.
func (r *SnapshotRepo) CreateRun(ctx context.Context, serverName string, seed int64) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO world_runs (id, server_name, seed) VALUES ($1, $2, $3)`,
		id, serverName, seed,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// SaveSnapshot replaces the run's stored snapshot with snap in one
// transaction.
func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM entity_snapshots WHERE run_id = $1`, snap.Run,
	); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	rows := snap.Rows
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"entity_snapshots"}, entityColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			e := rows[i]
			return []any{
				snap.Run, e.StorageIndex, e.Type, e.Flags,
				e.ChunkX, e.ChunkY, e.ChunkZ,
				e.OffsetX, e.OffsetY, e.OffsetZ,
				e.Collision, e.Payload,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy entities: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy entities: wrote %d of %d rows", n, len(rows))
	}

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO world_snapshots (run_id, tick, entity_count, digest, saved_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (run_id) DO UPDATE
		 SET tick = EXCLUDED.tick, entity_count = EXCLUDED.entity_count,
		     digest = EXCLUDED.digest, saved_at = EXCLUDED.saved_at`,
		snap.Run, int64(snap.Tick), len(rows), snap.Digest[:],
	)
	batch.Queue(`UPDATE world_runs SET last_tick = $2 WHERE id = $1`, snap.Run, int64(snap.Tick))
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadLatest returns the most recently saved snapshot of any run, or nil
// if none exists.
func (r *SnapshotRepo) LoadLatest(ctx context.Context) (*Snapshot, error) {
	var (
		snap   Snapshot
		tick   int64
		digest []byte
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT run_id, tick, digest, saved_at
		 FROM world_snapshots
		 ORDER BY saved_at DESC
		 LIMIT 1`,
	).Scan(&snap.Run, &tick, &digest, &snap.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	snap.Tick = uint64(tick)
	copy(snap.Digest[:], digest)

	rows, err := r.db.Pool.Query(ctx,
		`SELECT storage_index, entity_type, flags,
		        chunk_x, chunk_y, chunk_z,
		        offset_x, offset_y, offset_z,
		        collision, payload
		 FROM entity_snapshots
		 WHERE run_id = $1
		 ORDER BY storage_index`, snap.Run,
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshot entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e EntityRow
		if err := rows.Scan(
			&e.StorageIndex, &e.Type, &e.Flags,
			&e.ChunkX, &e.ChunkY, &e.ChunkZ,
			&e.OffsetX, &e.OffsetY, &e.OffsetZ,
			&e.Collision, &e.Payload,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot entity: %w", err)
		}
		snap.Rows = append(snap.Rows, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load snapshot entities: %w", err)
	}
	return &snap, nil
}
