package gamesync

import (
	"context"
	"sync"
	"time"

	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

const (
	// InterpolationWindow is the fixed blend duration between two
	// snapshot positions. It is deliberately not scaled by latency or
	// by the gap since the previous snapshot.
	InterpolationWindow = 100 * time.Millisecond

	// TickRate is how often Run recomputes blended positions.
	TickRate = 60
)

// interpolation blends one player from startPos to endPos over duration.
type interpolation struct {
	startPos  proto.Vec2
	endPos    proto.Vec2
	startTime time.Time
	duration  time.Duration
}

func (i *interpolation) at(now time.Time) proto.Vec2 {
	progress := float64(now.Sub(i.startTime)) / float64(i.duration)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return proto.Vec2{
		X: i.startPos.X + (i.endPos.X-i.startPos.X)*progress,
		Y: i.startPos.Y + (i.endPos.Y-i.startPos.Y)*progress,
	}
}

// Synchronizer reconstructs continuous player motion from discrete
// server snapshots arriving at irregular, network-bound intervals.
// Rendering reads blended positions; Predict offers a lower-latency
// dead-reckoned estimate on demand.
type Synchronizer struct {
	mu sync.Mutex

	snapshot   *proto.GameState
	receivedAt time.Time
	latency    time.Duration

	interps    map[string]*interpolation
	positions  map[string]proto.Vec2
	velocities map[string]proto.Vec2

	// gameTime free-runs on wall-clock deltas between snapshots, so it
	// drifts from the server clock under jitter.
	gameTime time.Duration
	lastTick time.Time
}

func New() *Synchronizer {
	return &Synchronizer{
		interps:    make(map[string]*interpolation),
		positions:  make(map[string]proto.Vec2),
		velocities: make(map[string]proto.Vec2),
	}
}

// Ingest consumes one server snapshot. Every player present in the
// snapshot starts a new interpolation from its last rendered position;
// a player seen for the first time snaps without blending.
func (s *Synchronizer) Ingest(snap proto.GameState, receivedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Diagnostic only; interpolation is never scaled by it.
	s.latency = receivedAt.Sub(time.UnixMilli(snap.ServerTime))

	prevAt := s.receivedAt
	for id, state := range snap.Players {
		last, seen := s.positions[id]
		if !seen {
			s.positions[id] = state.Position
			delete(s.interps, id)
			continue
		}
		s.interps[id] = &interpolation{
			startPos:  last,
			endPos:    state.Position,
			startTime: receivedAt,
			duration:  InterpolationWindow,
		}
		if s.snapshot != nil && !prevAt.IsZero() {
			if prev, ok := s.snapshot.Players[id]; ok {
				dt := receivedAt.Sub(prevAt).Seconds()
				if dt > 0 {
					s.velocities[id] = proto.Vec2{
						X: (state.Position.X - prev.Position.X) / dt,
						Y: (state.Position.Y - prev.Position.Y) / dt,
					}
				}
			}
		}
	}

	// Players absent from the snapshot have left the room.
	for id := range s.positions {
		if _, ok := snap.Players[id]; !ok {
			delete(s.positions, id)
			delete(s.interps, id)
			delete(s.velocities, id)
		}
	}

	s.snapshot = &snap
	s.receivedAt = receivedAt
}

// Tick advances gameTime by the wall-clock delta and recomputes every
// active blend at now.
func (s *Synchronizer) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastTick.IsZero() {
		s.gameTime += now.Sub(s.lastTick)
	}
	s.lastTick = now

	for id, interp := range s.interps {
		s.positions[id] = interp.at(now)
	}
}

// Run ticks the synchronizer at TickRate until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Position returns the last blended position for a player.
func (s *Synchronizer) Position(id string) (proto.Vec2, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[id]
	return pos, ok
}

// Positions returns a copy of every blended position.
func (s *Synchronizer) Positions() map[string]proto.Vec2 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]proto.Vec2, len(s.positions))
	for id, pos := range s.positions {
		out[id] = pos
	}
	return out
}

// Predict extrapolates a player's position by its last observed velocity
// over the measured one-way latency. It is on demand and never feeds
// back into the blended positions.
func (s *Synchronizer) Predict(id string) (proto.Vec2, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[id]
	if !ok {
		return proto.Vec2{}, false
	}
	vel, ok := s.velocities[id]
	if !ok {
		return pos, true
	}
	dt := s.latency.Seconds()
	return proto.Vec2{X: pos.X + vel.X*dt, Y: pos.Y + vel.Y*dt}, true
}

// SeedLocal starts a self-interpolation toward a locally initiated
// target so rendering does not wait for the server round trip.
func (s *Synchronizer) SeedLocal(id string, target proto.Vec2, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.positions[id]
	if !seen {
		s.positions[id] = target
		return
	}
	s.interps[id] = &interpolation{
		startPos:  last,
		endPos:    target,
		startTime: now,
		duration:  InterpolationWindow,
	}
}

// Latency reports the last measured snapshot latency. Diagnostic only.
func (s *Synchronizer) Latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency
}

// GameTime reports the free-running local clock.
func (s *Synchronizer) GameTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameTime
}
