package domain

import "strings"

// AudioArtifact is the finalized audio payload ready for upload.
type AudioArtifact struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Size returns the payload length in bytes.
func (a *AudioArtifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// IsAudioType reports whether a declared content type names an audio format.
func IsAudioType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "audio/")
}
