package draw

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"alphaearth-desktop/internal/geometry"
)

// State is the lifecycle state of a draw session
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// DefaultPointerDistance is the click radius in pixels used to snap onto the first vertex
const DefaultPointerDistance = 30

var (
	ErrNotDrawing         = errors.New("draw session is not active")
	ErrDuplicateVertex    = errors.New("vertex repeats the previous point")
	ErrMeasurementPending = errors.New("previous polygon is still being measured")
	ErrConsumerRegistered = errors.New("completion handler already registered")
	ErrNoConsumer         = errors.New("no completion handler registered")
)

// CompleteFunc receives a finished polygon. It is called at most once per session.
type CompleteFunc func(polygon geometry.Polygon)

// StateFunc observes state changes, used to update the toggle control.
// inFlight reports whether an emitted polygon is still awaiting Clear.
type StateFunc func(state State, sessionID string, inFlight bool)

// Options configure the capture primitive
type Options struct {
	// PointerDistance is the click tolerance in screen pixels for closing the
	// ring on the first vertex. Zero requires an exact hit.
	PointerDistance float64
	// AllowSelfIntersections disables the crossing-edge check. Completed
	// rings are still validated by geometry.NewPolygon.
	AllowSelfIntersections bool
}

// DefaultOptions matches the polygon mode configuration of the map
func DefaultOptions() Options {
	return Options{
		PointerDistance: DefaultPointerDistance,
	}
}

// Session captures one free-hand polygon at a time.
//
// A polygon handed to the completion handler stays "in flight" until Clear is
// called; until then Activate refuses to start a new session, so at most one
// polygon is ever being processed.
type Session struct {
	mu        sync.Mutex
	opts      Options
	state     State
	sessionID string
	vertices  []orb.Point
	inFlight  bool

	onComplete CompleteFunc
	onState    StateFunc
}

// NewSession creates an idle session
func NewSession(opts Options) *Session {
	return &Session{
		opts:  opts,
		state: StateIdle,
	}
}

// OnComplete registers the single consumer of completed polygons
func (s *Session) OnComplete(fn CompleteFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onComplete != nil {
		return ErrConsumerRegistered
	}
	s.onComplete = fn
	return nil
}

// OnStateChange sets the state observer
func (s *Session) OnStateChange(fn StateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the ID of the current or most recent session
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// InFlight reports whether an emitted polygon has not been cleared yet
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Vertices returns a copy of the vertices captured so far
func (s *Session) Vertices() []orb.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orb.Point(nil), s.vertices...)
}

// Activate starts capturing vertices. It is a no-op while already drawing.
func (s *Session) Activate() error {
	s.mu.Lock()
	if s.state == StateDrawing {
		s.mu.Unlock()
		return nil
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrMeasurementPending
	}

	s.state = StateDrawing
	s.sessionID = uuid.NewString()
	s.vertices = s.vertices[:0]
	notify := s.transition()
	s.mu.Unlock()

	log.Printf("[Draw] Polygon drawing mode activated (session %s)", s.sessionID)
	notify()
	return nil
}

// Deactivate forces the session back to idle and discards pending vertices
func (s *Session) Deactivate() {
	s.mu.Lock()
	if s.state == StateIdle && len(s.vertices) == 0 {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.vertices = nil
	notify := s.transition()
	s.mu.Unlock()

	notify()
}

// Toggle deactivates while drawing, otherwise activates
func (s *Session) Toggle() error {
	if s.State() == StateDrawing {
		s.Deactivate()
		return nil
	}
	return s.Activate()
}

// AddVertex appends a clicked point. A click within the pointer distance of
// the first vertex closes the ring instead; closed reports whether that happened.
// Vertices that would make the path cross itself are refused.
func (s *Session) AddVertex(pt orb.Point, zoom float64) (closed bool, err error) {
	if err := geometry.ValidateCoord(pt); err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.state != StateDrawing {
		s.mu.Unlock()
		return false, ErrNotDrawing
	}

	n := len(s.vertices)
	if n >= geometry.MinVertices && geometry.WithinPointerDistance(s.vertices[0], pt, s.opts.PointerDistance, zoom) {
		complete, err := s.closeLocked()
		s.mu.Unlock()
		if err != nil {
			return false, err
		}
		complete()
		return true, nil
	}
	if n > 0 && s.vertices[n-1].Equal(pt) {
		s.mu.Unlock()
		return false, ErrDuplicateVertex
	}
	if !s.opts.AllowSelfIntersections && geometry.ExtensionIntersects(s.vertices, pt) {
		s.mu.Unlock()
		return false, geometry.ErrSelfIntersection
	}

	s.vertices = append(s.vertices, pt)
	s.mu.Unlock()
	return false, nil
}

// Close finishes the ring. On success the polygon is handed to the completion
// handler exactly once and the session stays Completed until Clear.
// A ring that would intersect itself is refused and drawing continues.
func (s *Session) Close() error {
	s.mu.Lock()
	complete, err := s.closeLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	complete()
	return nil
}

// closeLocked completes the ring under the caller's lock. The returned func
// notifies observers and the handler; call it after unlocking.
func (s *Session) closeLocked() (func(), error) {
	if s.state != StateDrawing {
		return nil, ErrNotDrawing
	}
	if s.onComplete == nil {
		return nil, ErrNoConsumer
	}

	polygon, err := geometry.NewPolygon(s.sessionID, s.vertices)
	if err != nil {
		return nil, err
	}

	s.state = StateCompleted
	s.inFlight = true
	s.vertices = nil
	handler := s.onComplete
	notify := s.transition()

	return func() {
		log.Printf("[Draw] Polygon completed: %s", polygon)
		notify()
		handler(polygon)
	}, nil
}

// Clear removes any pending or emitted geometry and returns to idle.
// Safe to call repeatedly.
func (s *Session) Clear() {
	s.mu.Lock()
	if s.state == StateIdle && !s.inFlight && len(s.vertices) == 0 {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.inFlight = false
	s.vertices = nil
	notify := s.transition()
	s.mu.Unlock()

	notify()
}

// transition captures the observer call for the current state; it must be
// invoked after the lock is released.
func (s *Session) transition() func() {
	fn, state, id, inFlight := s.onState, s.state, s.sessionID, s.inFlight
	return func() {
		if fn != nil {
			fn(state, id, inFlight)
		}
	}
}
