package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/entities"
	"github.com/mhire/liveavatar/domain/repositories"
	"github.com/mhire/liveavatar/internal/apperr"
	"github.com/mhire/liveavatar/internal/assets"
	"github.com/mhire/liveavatar/internal/ident"
	"github.com/mhire/liveavatar/internal/metrics"
)

// Progress event types pushed while a render runs
const (
	EventRenderStarted   = "render_started"
	EventRenderCompleted = "render_completed"
	EventRenderFailed    = "render_failed"
)

// AudioExtensions are the audio formats accepted as render input
var AudioExtensions = []string{"wav", "mp3", "m4a", "flac", "ogg", "aac"}

// ProgressSink delivers progress events to a connected client
type ProgressSink interface {
	Publish(clientID string, event entities.ProgressEvent)
}

type nopSink struct{}

func (nopSink) Publish(string, entities.ProgressEvent) {}

// VideoService renders talking-avatar videos from an image and an audio file
type VideoService struct {
	renderer repositories.LipSyncRenderer
	video    *assets.Store
	progress ProgressSink
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewVideoService creates a new video service. progress may be nil.
func NewVideoService(
	renderer repositories.LipSyncRenderer,
	video *assets.Store,
	progress ProgressSink,
	m *metrics.Metrics,
	logger *zap.Logger,
) *VideoService {
	if progress == nil {
		progress = nopSink{}
	}
	return &VideoService{
		renderer: renderer,
		video:    video,
		progress: progress,
		metrics:  m,
		logger:   logger,
	}
}

// Generate renders req.Image speaking req.AudioPath. The temporary image is
// removed exactly once whatever the outcome.
func (s *VideoService) Generate(ctx context.Context, req entities.VideoRequest) (*entities.VideoArtifact, error) {
	if err := assets.ValidateFile(req.AudioPath, AudioExtensions...); err != nil {
		if errors.Is(err, assets.ErrNotExist) {
			return nil, apperr.New(apperr.NotFound, "Audio file not found: "+req.AudioPath)
		}
		return nil, apperr.Wrap(apperr.InvalidInput, err, "Invalid audio file")
	}

	if len(req.Image) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "Image file is empty")
	}
	mtype := mimetype.Detect(req.Image)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, apperr.New(apperr.InvalidInput, "Unsupported image type: "+mtype.String())
	}

	requestID := ident.RequestID("video")
	imagePath, err := s.video.Write(requestID+mtype.Extension(), req.Image)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, err, "Failed to store image")
	}
	defer func() {
		if err := s.video.Remove(imagePath); err != nil {
			s.logger.Warn("Failed to remove temporary image", zap.String("path", imagePath), zap.Error(err))
		}
	}()

	outputName := requestID + ".mp4"
	s.publish(req.ClientID, EventRenderStarted, requestID, "")
	s.logger.Info("Rendering video",
		zap.String("requestID", requestID),
		zap.String("audioPath", req.AudioPath),
		zap.String("imagePath", imagePath))

	s.metrics.RendersInFlight.Inc()
	start := time.Now()
	result, err := s.renderer.Render(ctx, repositories.RenderJob{
		RequestID:  requestID,
		ImagePath:  imagePath,
		AudioPath:  req.AudioPath,
		ResultDir:  s.video.Dir(),
		OutputName: outputName,
	})
	s.metrics.RendersInFlight.Dec()
	s.metrics.ObserveRender(time.Since(start), err)

	if err != nil {
		appErr := s.renderError(ctx, err)
		s.publish(req.ClientID, EventRenderFailed, requestID, appErr.Message)
		return nil, appErr
	}

	videoPath := s.video.Path(outputName)
	if !assets.Exists(videoPath) {
		s.logger.Error("Render exited cleanly without output",
			zap.String("requestID", requestID),
			zap.String("stdout", result.Stdout))
		appErr := apperr.New(apperr.GenerationFailure, "Video generation failed: Output file not found")
		s.publish(req.ClientID, EventRenderFailed, requestID, appErr.Message)
		return nil, appErr
	}

	s.publish(req.ClientID, EventRenderCompleted, requestID, "")
	s.logger.Info("Video rendered",
		zap.String("requestID", requestID),
		zap.String("videoPath", videoPath),
		zap.Int64("durationMs", result.Duration))

	return &entities.VideoArtifact{
		VideoPath: videoPath,
		RequestID: requestID,
		VideoURL:  s.video.URL(assets.VideoMount, videoPath),
	}, nil
}

// Locate returns the path of a rendered video. A trailing ".mp4" on id is
// accepted.
func (s *VideoService) Locate(id string) (string, error) {
	id = strings.TrimSuffix(id, ".mp4")
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", apperr.New(apperr.InvalidInput, "Invalid video id: "+id)
	}

	p := s.video.Path(id + ".mp4")
	if !assets.Exists(p) {
		return "", apperr.New(apperr.NotFound, "Video not found: "+id)
	}
	return p, nil
}

func (s *VideoService) renderError(ctx context.Context, err error) *apperr.Error {
	switch {
	case isDeadline(ctx, err):
		return apperr.Wrap(apperr.Timeout, err, "Video generation timed out")
	case errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.Unexpected, err, "Video generation cancelled")
	default:
		return apperr.Wrap(apperr.GenerationFailure, err, "Video generation failed")
	}
}

func (s *VideoService) publish(clientID, eventType, requestID, errMsg string) {
	if clientID == "" {
		return
	}
	s.progress.Publish(clientID, entities.ProgressEvent{
		Type:      eventType,
		RequestID: requestID,
		Stage:     "render_video",
		Error:     errMsg,
		Timestamp: time.Now().UnixMilli(),
	})
}
