package console

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"speech-to-tweet/internal/domain"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorRed    = "\033[31m"

	barWidth = 20
)

// Display renders capture and submission state as terminal lines. It is safe
// for use from the controllers' goroutines.
type Display struct {
	logger     *slog.Logger
	previewDir string
	color      bool

	mu       sync.Mutex
	out      io.Writer
	status   string
	progress int
}

func NewDisplay(out io.Writer, previewDir string, color bool, logger *slog.Logger) *Display {
	if logger == nil {
		logger = slog.Default()
	}
	if previewDir == "" {
		previewDir = os.TempDir()
	}
	return &Display{out: out, previewDir: previewDir, color: color, logger: logger}
}

func (d *Display) line(color, tag, msg string, a ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prefix := "[" + tag + "] "
	if d.color {
		prefix = color + prefix + colorReset
	}
	fmt.Fprintf(d.out, prefix+msg+"\n", a...)
}

func (d *Display) SetElapsed(text string) {
	d.line(colorRed, "rec", "%s", text)
}

func (d *Display) SetRecording(recording bool) {
	if recording {
		d.line(colorRed, "rec", "Recording in progress...")
		return
	}
	d.line(colorBlue, "rec", "Recording stopped")
}

// BindArtifact writes a playable preview file and returns the func that
// removes it.
func (d *Display) BindArtifact(a *domain.AudioArtifact) func() {
	ext := filepath.Ext(a.Filename)
	f, err := os.CreateTemp(d.previewDir, "preview-*"+ext)
	if err != nil {
		d.logger.Warn("could not create preview file", "err", err)
		d.line(colorGreen, "audio", "%s ready for submission (%d bytes)", describe(a), a.Size())
		return func() {}
	}
	path := f.Name()
	_, werr := f.Write(a.Data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		d.logger.Warn("could not write preview file", "err", werr, "close_err", cerr)
	}

	d.line(colorGreen, "audio", "%s ready for submission (%d bytes), preview: %s", describe(a), a.Size(), path)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				d.logger.Warn("could not remove preview file", "err", err, "path", path)
			}
		})
	}
}

func describe(a *domain.AudioArtifact) string {
	if a.Filename == "" {
		return "Recorded audio"
	}
	return a.Filename
}

func (d *Display) SetStatus(text string) {
	d.mu.Lock()
	d.status = text
	d.mu.Unlock()

	color := colorBlue
	if strings.HasPrefix(text, "Error") {
		color = colorRed
	}
	d.line(color, "status", "%s", text)
}

func (d *Display) SetProgress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	d.mu.Lock()
	d.progress = percent
	d.mu.Unlock()

	d.line(colorBlue, "progress", "%s %3d%%", progressBar(percent), percent)
}

func progressBar(percent int) string {
	filled := percent * barWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

// ShowResults prints the transcription and each item as plain text.
func (d *Display) ShowResults(outcome domain.Outcome) {
	if t := strings.TrimSpace(outcome.Transcription); t != "" {
		d.line(colorGreen, "transcript", "%s", t)
	}
	if len(outcome.Items) == 0 {
		d.line(colorYellow, "result", "job %s produced no items", outcome.JobID)
		return
	}
	for i, item := range outcome.Items {
		d.line(colorGreen, "result", "%d. %s", i+1, item.Text)
	}
}

// Warn prints a notice that is not part of the submission status.
func (d *Display) Warn(msg string) {
	d.line(colorYellow, "warn", "%s", msg)
}

// Info prints a neutral notice.
func (d *Display) Info(msg string) {
	d.line(colorBlue, "info", "%s", msg)
}

// Status returns the last status text and progress.
func (d *Display) Status() (string, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, d.progress
}
