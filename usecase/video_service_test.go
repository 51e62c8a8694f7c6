package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mhire/liveavatar/domain"
	"github.com/mhire/liveavatar/domain/entities"
	"github.com/mhire/liveavatar/internal/apperr"
	"github.com/mhire/liveavatar/internal/assets"
	"github.com/mhire/liveavatar/internal/metrics"
)

type videoFixture struct {
	svc      *VideoService
	renderer *fakeRenderer
	sink     *recordingSink
	metrics  *metrics.Metrics
	dir      string
	audio    string
}

func newVideoFixture(t *testing.T) *videoFixture {
	t.Helper()
	dir := t.TempDir()
	audio := filepath.Join(t.TempDir(), "speech.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3"), 0o644))

	f := &videoFixture{
		renderer: &fakeRenderer{write: true},
		sink:     newRecordingSink(),
		metrics:  metrics.New(),
		dir:      dir,
		audio:    audio,
	}
	logger := zaptest.NewLogger(t)
	f.svc = NewVideoService(f.renderer, assets.NewStore(dir, logger), f.sink, f.metrics, logger)
	return f
}

func (f *videoFixture) request() entities.VideoRequest {
	return entities.VideoRequest{Image: pngBytes, AudioPath: f.audio, ClientID: "client-1"}
}

func TestGenerate(t *testing.T) {
	f := newVideoFixture(t)

	video, err := f.svc.Generate(context.Background(), f.request())
	require.NoError(t, err)

	assert.FileExists(t, video.VideoPath)
	assert.Equal(t, video.RequestID+".mp4", filepath.Base(video.VideoPath))
	assert.Equal(t, "/video-assets/"+video.RequestID+".mp4", video.VideoURL)

	assert.True(t, f.renderer.sawImg)
	assert.Equal(t, video.RequestID+".png", filepath.Base(f.renderer.job.ImagePath))
	assert.Equal(t, f.audio, f.renderer.job.AudioPath)
	assert.Equal(t, f.dir, f.renderer.job.ResultDir)

	assert.Equal(t, []string{video.RequestID + ".mp4"}, dirEntries(t, f.dir), "temporary image must be removed")
	assert.Equal(t, []string{EventRenderStarted, EventRenderCompleted}, f.sink.types("client-1"))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.RendersInFlight))
}

func TestGenerate_MissingAudio(t *testing.T) {
	f := newVideoFixture(t)
	req := f.request()
	req.AudioPath = filepath.Join(f.dir, "nope.wav")

	_, err := f.svc.Generate(context.Background(), req)

	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.EqualError(t, err, "Audio file not found: "+req.AudioPath)
	assert.Equal(t, 0, f.renderer.calls)
	assert.Empty(t, dirEntries(t, f.dir))
}

func TestGenerate_RejectsInput(t *testing.T) {
	t.Run("audio extension", func(t *testing.T) {
		f := newVideoFixture(t)
		bad := filepath.Join(t.TempDir(), "speech.txt")
		require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))
		req := f.request()
		req.AudioPath = bad

		_, err := f.svc.Generate(context.Background(), req)
		assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	})

	t.Run("not an image", func(t *testing.T) {
		f := newVideoFixture(t)
		req := f.request()
		req.Image = []byte("plain text, not a picture")

		_, err := f.svc.Generate(context.Background(), req)
		assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
		assert.Equal(t, 0, f.renderer.calls)
	})
}

func TestGenerate_RenderFails(t *testing.T) {
	f := newVideoFixture(t)
	f.renderer.err = &domain.ProcessError{Program: "sadtalker", ExitCode: 1, Stderr: "CUDA out of memory"}

	_, err := f.svc.Generate(context.Background(), f.request())

	assert.Equal(t, apperr.GenerationFailure, apperr.KindOf(err))
	assert.EqualError(t, err, "Video generation failed: CUDA out of memory")
	assert.Empty(t, dirEntries(t, f.dir), "temporary image must be removed")
	assert.Equal(t, []string{EventRenderStarted, EventRenderFailed}, f.sink.types("client-1"))
}

func TestGenerate_NoOutput(t *testing.T) {
	f := newVideoFixture(t)
	f.renderer.write = false

	_, err := f.svc.Generate(context.Background(), f.request())

	assert.Equal(t, apperr.GenerationFailure, apperr.KindOf(err))
	assert.EqualError(t, err, "Video generation failed: Output file not found")
	assert.Empty(t, dirEntries(t, f.dir))
}

func TestGenerate_Timeout(t *testing.T) {
	f := newVideoFixture(t)
	f.renderer.block = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.svc.Generate(ctx, f.request())

	assert.Equal(t, apperr.Timeout, apperr.KindOf(err))
	assert.Empty(t, dirEntries(t, f.dir), "temporary image must be removed after a timeout")
}

func TestGenerate_NoClientNoEvents(t *testing.T) {
	f := newVideoFixture(t)
	req := f.request()
	req.ClientID = ""

	_, err := f.svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, f.sink.events)
}

func TestLocate(t *testing.T) {
	f := newVideoFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "REQ-abc.mp4"), []byte("mp4"), 0o644))

	p, err := f.svc.Locate("REQ-abc")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, "REQ-abc.mp4"))

	p, err = f.svc.Locate("REQ-abc.mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, "REQ-abc.mp4"))

	_, err = f.svc.Locate("REQ-missing")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.EqualError(t, err, "Video not found: REQ-missing")

	for _, id := range []string{"../secret", "a/b", `a\b`, ""} {
		_, err = f.svc.Locate(id)
		assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err), id)
	}
}
