package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/mhire/liveavatar/domain/entities"
	"github.com/mhire/liveavatar/domain/repositories"
)

type fakeSTT struct {
	name      string
	available bool
	text      string
	err       error

	calls    int
	sawFile  bool
	lastPath string
	config   repositories.AudioConfig
}

func (f *fakeSTT) Name() string    { return f.name }
func (f *fakeSTT) Available() bool { return f.available }

func (f *fakeSTT) TranscribeFile(ctx context.Context, path string, config repositories.AudioConfig) (string, error) {
	f.calls++
	f.lastPath = path
	f.config = config
	_, statErr := os.Stat(path)
	f.sawFile = statErr == nil
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeTTS struct {
	name      string
	available bool
	format    string
	audio     []byte
	err       error

	voice string
}

func (f *fakeTTS) Name() string    { return f.name }
func (f *fakeTTS) Available() bool { return f.available }
func (f *fakeTTS) Format() string  { return f.format }

func (f *fakeTTS) SynthesizeAudio(ctx context.Context, text string, config repositories.VoiceConfig) ([]byte, error) {
	f.voice = config.Voice
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

// fakeRenderer stands in for SadTalker. When write is set it produces the
// expected output file.
type fakeRenderer struct {
	write bool
	err   error
	block bool

	calls  int
	job    repositories.RenderJob
	sawImg bool
}

func (f *fakeRenderer) Render(ctx context.Context, job repositories.RenderJob) (*repositories.RenderResult, error) {
	f.calls++
	f.job = job
	_, statErr := os.Stat(job.ImagePath)
	f.sawImg = statErr == nil

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.write {
		if err := os.WriteFile(filepath.Join(job.ResultDir, job.OutputName), []byte("mp4"), 0o644); err != nil {
			return nil, err
		}
	}
	return &repositories.RenderResult{Stdout: "done", Duration: 1}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events map[string][]entities.ProgressEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: map[string][]entities.ProgressEvent{}}
}

func (r *recordingSink) Publish(clientID string, event entities.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[clientID] = append(r.events[clientID], event)
}

func (r *recordingSink) types(clientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events[clientID] {
		out = append(out, e.Type)
	}
	return out
}

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	wavBytes = append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
)
