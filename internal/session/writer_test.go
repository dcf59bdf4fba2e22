package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialTestWriter(t *testing.T) (*flowWriter, *websocket.Conn, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var serverConn *websocket.Conn
	ready := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn = conn
		close(ready)
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	<-ready

	w := newFlowWriter(context.Background(), serverConn, "sess-1", zap.NewNop())
	cleanup := func() {
		w.Close()
		clientConn.Close()
		srv.Close()
	}
	return w, clientConn, cleanup
}

func TestFlowWriter_SendHelloRoundTrips(t *testing.T) {
	w, clientConn, cleanup := dialTestWriter(t)
	defer cleanup()

	require.NoError(t, w.SendHello("opus", 16000, 1, nil))

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"type":"hello"`)
}

func TestFlowWriter_FenceDropsStaleSentence(t *testing.T) {
	w, clientConn, cleanup := dialTestWriter(t)
	defer cleanup()

	w.SetFence("sentence-A")
	w.SendAudio("sentence-B", []byte{0x01})
	w.SendAudio("sentence-A", []byte{0x02})

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte{0x02}, data)
}

func TestFlowWriter_DrainAudioQueueEmptiesBuffer(t *testing.T) {
	w, _, cleanup := dialTestWriter(t)
	defer cleanup()

	// Fence to a sentence none of the frames carry, so every queued frame
	// is discarded (by the audio loop or by DrainAudioQueue), never forwarded.
	w.SetFence("sentence-admitted")
	for i := 0; i < 5; i++ {
		w.SendAudio("sentence-other", []byte{byte(i)})
	}
	w.DrainAudioQueue()
	require.Eventually(t, func() bool { return len(w.audioCh) == 0 }, time.Second, 10*time.Millisecond)
}

func TestFlowWriter_AdmitsMatchesCurrentFence(t *testing.T) {
	w, _, cleanup := dialTestWriter(t)
	defer cleanup()

	w.SetFence("sentence-X")
	require.True(t, w.admits("sentence-X"))
	require.False(t, w.admits("sentence-Y"))
}
