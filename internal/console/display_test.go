package console

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"speech-to-tweet/internal/domain"
)

func newTestDisplay(t *testing.T) (*Display, *bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	dir := t.TempDir()
	return NewDisplay(&buf, dir, false, nil), &buf, dir
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent int
		want    string
	}{
		{0, "[--------------------]"},
		{10, "[##------------------]"},
		{70, "[##############------]"},
		{100, "[####################]"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, progressBar(tt.percent))
	}
}

func TestDisplay_SetProgressClamps(t *testing.T) {
	d, buf, _ := newTestDisplay(t)

	d.SetProgress(150)
	_, progress := d.Status()
	require.Equal(t, 100, progress)

	d.SetProgress(-5)
	_, progress = d.Status()
	require.Equal(t, 0, progress)
	require.Contains(t, buf.String(), "[progress] [--------------------]   0%")
}

func TestDisplay_SetStatusRemembersText(t *testing.T) {
	d, buf, _ := newTestDisplay(t)

	d.SetStatus("Uploading audio...")
	text, _ := d.Status()
	require.Equal(t, "Uploading audio...", text)
	require.Equal(t, "[status] Uploading audio...\n", buf.String())
}

func TestDisplay_ColorWrapsPrefix(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf, t.TempDir(), true, nil)

	d.SetStatus("Error: boom")
	require.Equal(t, colorRed+"[status] "+colorReset+"Error: boom\n", buf.String())
}

func TestDisplay_BindArtifactWritesAndReleasesPreview(t *testing.T) {
	d, buf, dir := newTestDisplay(t)

	release := d.BindArtifact(&domain.AudioArtifact{Data: []byte("abc"), MIMEType: "audio/webm", Filename: "recording.webm"})

	matches, err := filepath.Glob(filepath.Join(dir, "preview-*.webm"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Equal(t, "abc", string(data))
	require.Contains(t, buf.String(), "recording.webm ready for submission (3 bytes)")

	release()
	release()
	_, err = os.Stat(matches[0])
	require.True(t, os.IsNotExist(err))
}

func TestDisplay_BindArtifactWithoutPreviewDir(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf, filepath.Join(t.TempDir(), "missing"), false, nil)

	release := d.BindArtifact(&domain.AudioArtifact{Data: []byte("abc"), MIMEType: "audio/mpeg", Filename: "memo.mp3"})
	require.NotNil(t, release)
	release()
	require.Contains(t, buf.String(), "memo.mp3 ready for submission (3 bytes)")
}

func TestDisplay_ShowResults(t *testing.T) {
	d, buf, _ := newTestDisplay(t)

	d.ShowResults(domain.Outcome{
		JobID: "job-1",
		JobState: domain.JobState{
			Status:        domain.StatusCompleted,
			Transcription: "hello world",
			Items: []domain.ResultItem{
				{ID: "1", Text: "first"},
				{ID: "2", Text: "<b>second</b>"},
			},
		},
	})

	out := buf.String()
	require.Contains(t, out, "[transcript] hello world\n")
	require.Contains(t, out, "[result] 1. first\n")
	require.Contains(t, out, "[result] 2. <b>second</b>\n")
	require.Less(t, strings.Index(out, "1. first"), strings.Index(out, "2. <b>second</b>"))
}

func TestDisplay_ShowResultsEmpty(t *testing.T) {
	d, buf, _ := newTestDisplay(t)

	d.ShowResults(domain.Outcome{JobID: "job-1", JobState: domain.JobState{Status: domain.StatusCompleted}})
	require.Equal(t, "[result] job job-1 produced no items\n", buf.String())
}
