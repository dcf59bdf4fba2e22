package session

import "go.uber.org/zap"

// State is a session's position in the per-turn state machine of
// spec.md Section 4.1.
type State int

const (
	StateIdle State = iota
	StateListening
	StateRecognizing
	StateDispatching
	StateSpeaking
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRecognizing:
		return "recognizing"
	case StateDispatching:
		return "dispatching"
	case StateSpeaking:
		return "speaking"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// setState transitions the session, guarding abort/stop as valid from any
// state (spec.md's state table: "any | abort | ... | Idle" and
// "any | stop_event | ... | Terminated").
func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		s.logger.Debug("session state transition", zap.String("from", prev.String()), zap.String("to", next.String()))
	}
}

func (s *Session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
