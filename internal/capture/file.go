package capture

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile reads a file from disk the way a file picker would hand it over:
// name, declared type and contents. The type comes from the extension, then
// from content sniffing.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("capture: read %s: %w", path, err)
	}
	name := filepath.Base(path)
	mimeType := MIMEForFilename(name)
	if mimeType == "" {
		mimeType = strings.TrimSpace(strings.Split(http.DetectContentType(data), ";")[0])
	}
	return File{Name: name, Type: mimeType, Data: data}, nil
}

// MIMEForFilename maps known audio extensions to their content type. Anything
// else returns "" and is left to content sniffing.
func MIMEForFilename(fn string) string {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".webm", ".weba":
		return "audio/webm"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".opus":
		return "audio/opus"
	case ".m4a":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".aac":
		return "audio/aac"
	default:
		return ""
	}
}
