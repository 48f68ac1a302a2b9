package system

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/core/event"
	coresys "github.com/tilesim/server/internal/core/system"
	"github.com/tilesim/server/internal/game"
	"github.com/tilesim/server/internal/persist"
)

// SnapshotWriter stores a captured snapshot.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, snap *persist.Snapshot) error
}

type saveResult struct {
	tick     uint64
	entities int
	took     time.Duration
	err      error
}

// PersistenceSystem captures the entity table every interval ticks and
// hands it to a background writer. Capture runs on the game goroutine; the
// writer only sees the captured rows and reports back through results,
// which are drained here so events are emitted from the game goroutine.
// Phase 4 (Persist).
type PersistenceSystem struct {
	state  *game.State
	writer SnapshotWriter
	bus    *event.Bus
	run    uuid.UUID
	log    *zap.Logger

	queue   chan *persist.Snapshot
	results chan saveResult
	started bool

	tickCount int
	interval  int
	lastSaved uint64
}

func NewPersistenceSystem(state *game.State, writer SnapshotWriter, bus *event.Bus, run uuid.UUID,
	intervalTicks, queueSize int, log *zap.Logger) *PersistenceSystem {
	if queueSize < 1 {
		queueSize = 1
	}
	return &PersistenceSystem{
		state:    state,
		writer:   writer,
		bus:      bus,
		run:      run,
		log:      log,
		queue:    make(chan *persist.Snapshot, queueSize),
		results:  make(chan saveResult, queueSize+1),
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

// Start launches the background writer. Writes use ctx.
func (s *PersistenceSystem) Start(ctx context.Context) {
	s.started = true
	go func() {
		defer close(s.results)
		for snap := range s.queue {
			s.results <- s.write(ctx, snap)
		}
	}()
}

func (s *PersistenceSystem) write(ctx context.Context, snap *persist.Snapshot) saveResult {
	start := time.Now()
	err := s.writer.SaveSnapshot(ctx, snap)
	return saveResult{tick: snap.Tick, entities: len(snap.Rows), took: time.Since(start), err: err}
}

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.drain()

	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	snap, err := s.capture()
	if err != nil {
		s.log.Error("snapshot capture failed", zap.Uint64("tick", s.state.Tick()), zap.Error(err))
		return
	}
	select {
	case s.queue <- snap:
	default:
		s.log.Warn("snapshot writer busy, skipping", zap.Uint64("tick", snap.Tick))
	}
}

func (s *PersistenceSystem) capture() (*persist.Snapshot, error) {
	rows, err := persist.CaptureRows(s.state.Storage())
	if err != nil {
		return nil, err
	}
	return &persist.Snapshot{
		Run:    s.run,
		Tick:   s.state.Tick(),
		Digest: s.state.Storage().Digest(),
		Rows:   rows,
	}, nil
}

func (s *PersistenceSystem) drain() {
	for {
		select {
		case r, ok := <-s.results:
			if !ok {
				return
			}
			s.report(r)
		default:
			return
		}
	}
}

func (s *PersistenceSystem) report(r saveResult) {
	if r.err != nil {
		s.log.Error("snapshot save failed", zap.Uint64("tick", r.tick), zap.Error(r.err))
		return
	}
	if r.tick > s.lastSaved {
		s.lastSaved = r.tick
	}
	s.log.Debug("snapshot saved",
		zap.Uint64("tick", r.tick),
		zap.Int("entities", r.entities),
		zap.Duration("took", r.took))
	event.Emit(s.bus, event.SnapshotSaved{Run: s.run, Tick: r.tick, Entities: r.entities})
}

// LastSaved returns the tick of the newest snapshot known to be stored.
func (s *PersistenceSystem) LastSaved() uint64 { return s.lastSaved }

// Close stops the writer after it finishes queued snapshots, then saves the
// current tick synchronously. Call it from the game goroutine once the loop
// has stopped; Update must not run afterwards.
func (s *PersistenceSystem) Close(ctx context.Context) error {
	if s.started {
		close(s.queue)
		for r := range s.results {
			s.report(r)
		}
		s.started = false
	}
	if s.state.Tick() == s.lastSaved {
		return nil
	}

	snap, err := s.capture()
	if err != nil {
		return err
	}
	r := s.write(ctx, snap)
	s.report(r)
	if r.err != nil {
		return r.err
	}
	s.log.Info("final snapshot saved",
		zap.Stringer("run", s.run),
		zap.Uint64("tick", r.tick),
		zap.Int("entities", r.entities))
	return nil
}
