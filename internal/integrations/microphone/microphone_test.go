package microphone

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestNew_PicksSource(t *testing.T) {
	mic, err := New("", 0)
	require.NoError(t, err)
	require.Nil(t, mic)

	mic, err = New("ws://localhost:9000/mic", 0)
	require.NoError(t, err)
	require.IsType(t, &WebSocketSource{}, mic)

	mic, err = New("/dev/snd/pcmC0D0c", 0)
	require.NoError(t, err)
	fs, ok := mic.(*FileSource)
	require.True(t, ok)
	require.Equal(t, defaultChunkBytes, fs.chunkBytes)
}

func TestNewWebSocketSource_RejectsOtherSchemes(t *testing.T) {
	_, err := NewWebSocketSource("http://localhost/mic")
	require.Error(t, err)
}

func TestFileSource_ReadsChunksThenEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.webm")
	require.NoError(t, os.WriteFile(path, []byte("abcdefghij"), 0o600))

	src, err := NewFileSource(path, 4)
	require.NoError(t, err)
	stream, err := src.Open(context.Background())
	require.NoError(t, err)

	var got []string
	for {
		chunk, err := stream.ReadChunk()
		if len(chunk) > 0 {
			got = append(got, string(chunk))
		}
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}
	require.Equal(t, []string{"abcd", "efgh", "ij"}, got)
	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Stop())
}

func TestFileSource_MissingPathIsPermissionDenied(t *testing.T) {
	src, err := NewFileSource(filepath.Join(t.TempDir(), "nope"), 0)
	require.NoError(t, err)
	_, err = src.Open(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStream_StopUnblocksPipeRead(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	stream := newFileStream(r, 16)
	_, err = w.Write([]byte("frame"))
	require.NoError(t, err)

	chunk, err := stream.ReadChunk()
	require.NoError(t, err)
	require.Equal(t, "frame", string(chunk))

	done := make(chan error, 1)
	go func() {
		_, err := stream.ReadChunk()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, stream.Stop())

	select {
	case err := <-done:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock after Stop")
	}
}

func relayServer(t *testing.T, frames func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketSource_StreamsBinaryFrames(t *testing.T) {
	srv := relayServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte("one"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"level","value":0.3}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte("two"))
	})
	defer srv.Close()

	src, err := NewWebSocketSource(wsURL(srv))
	require.NoError(t, err)
	stream, err := src.Open(context.Background())
	require.NoError(t, err)

	chunk, err := stream.ReadChunk()
	require.NoError(t, err)
	require.Equal(t, "one", string(chunk))
	chunk, err = stream.ReadChunk()
	require.NoError(t, err)
	require.Equal(t, "two", string(chunk))

	require.NoError(t, stream.Stop())
	_, err = stream.ReadChunk()
	require.ErrorIs(t, err, io.EOF)
}

func TestWebSocketSource_ForbiddenIsPermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "microphone access denied", http.StatusForbidden)
	}))
	defer srv.Close()

	src, err := NewWebSocketSource(wsURL(srv))
	require.NoError(t, err)
	_, err = src.Open(context.Background())
	require.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestWebSocketSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := wsURL(srv)
	srv.Close()

	src, err := NewWebSocketSource(u)
	require.NoError(t, err)
	_, err = src.Open(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrPermissionDenied))
}
