package microphone

import (
	"errors"
	"strings"

	"speech-to-tweet/internal/capture"
)

const defaultChunkBytes = 4096

// ErrPermissionDenied marks a source that refused access.
var ErrPermissionDenied = errors.New("microphone: permission denied")

// New picks a microphone for source: a ws:// or wss:// URL dials a websocket relay,
// anything else is a device, FIFO or file path. An empty source returns nil,
// meaning recording is unsupported.
func New(source string, chunkBytes int) (capture.Microphone, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, nil
	case strings.HasPrefix(source, "ws://"), strings.HasPrefix(source, "wss://"):
		src, err := NewWebSocketSource(source)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		src, err := NewFileSource(source, chunkBytes)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}
