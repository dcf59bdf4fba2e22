package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestSession() *Session {
	return &Session{logger: zap.NewNop()}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateIdle:        "idle",
		StateListening:   "listening",
		StateRecognizing: "recognizing",
		StateDispatching: "dispatching",
		StateSpeaking:    "speaking",
		StateTerminated:  "terminated",
		State(99):        "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestSession_SetStateAndGetState(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, StateIdle, s.getState())

	s.setState(StateListening)
	assert.Equal(t, StateListening, s.getState())

	s.setState(StateSpeaking)
	assert.Equal(t, StateSpeaking, s.getState())
}

func TestSession_AbortValidFromAnyState(t *testing.T) {
	for _, from := range []State{StateIdle, StateListening, StateRecognizing, StateDispatching, StateSpeaking} {
		s := newTestSession()
		s.setState(from)
		s.setState(StateIdle)
		assert.Equal(t, StateIdle, s.getState())
	}
}

func TestSession_StopEventValidFromAnyState(t *testing.T) {
	for _, from := range []State{StateIdle, StateListening, StateRecognizing, StateDispatching, StateSpeaking} {
		s := newTestSession()
		s.setState(from)
		s.setState(StateTerminated)
		assert.Equal(t, StateTerminated, s.getState())
	}
}
