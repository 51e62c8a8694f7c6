package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/entities"
	"github.com/mhire/liveavatar/internal/apperr"
)

const (
	// meta.resource tags, one per endpoint
	resourceTranscribe = "audio/transcribe"
	resourceSpeak      = "audio/speak"
	resourceUpload     = "audio/upload"
	resourceGenerate   = "video/generate"
	resourceStream     = "video/stream"
	resourceReply      = "conversation/reply"

	startKey = "request_start"
)

// SpeechGateway converts between text and speech files
type SpeechGateway interface {
	Transcribe(ctx context.Context, audio []byte, preferRemote bool) (*entities.Transcript, error)
	Synthesize(ctx context.Context, text, voice string) (*entities.SpeechArtifact, error)
	StoreUpload(data []byte) (*entities.UploadedAudio, error)
}

// VideoGateway renders and locates avatar videos
type VideoGateway interface {
	Generate(ctx context.Context, req entities.VideoRequest) (*entities.VideoArtifact, error)
	Locate(id string) (string, error)
}

// ConversationGateway runs a whole text -> speech -> video turn
type ConversationGateway interface {
	Reply(ctx context.Context, req entities.ConversationRequest) (*entities.ConversationTurn, error)
}

// Handler serves the audio, video and conversation resource groups
type Handler struct {
	speech       SpeechGateway
	video        VideoGateway
	conversation ConversationGateway
	responder    *Responder
	// uniformErrors collapses every failure to 500 / 50000
	uniformErrors bool
	logger        *zap.Logger
}

func NewHandler(
	speech SpeechGateway,
	video VideoGateway,
	conversation ConversationGateway,
	responder *Responder,
	uniformErrors bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		speech:        speech,
		video:         video,
		conversation:  conversation,
		responder:     responder,
		uniformErrors: uniformErrors,
		logger:        logger,
	}
}

// Transcribe handles POST /audio/transcribe
func (h *Handler) Transcribe(c echo.Context) error {
	start := requestStart(c)

	audio, err := readFormFile(c, "file")
	if err != nil {
		return h.fail(c, resourceTranscribe, start, err)
	}
	useGroq, err := parseFormBool(c, "use_groq", true)
	if err != nil {
		return h.fail(c, resourceTranscribe, start, err)
	}

	transcript, err := h.speech.Transcribe(c.Request().Context(), audio, useGroq)
	if err != nil {
		return h.fail(c, resourceTranscribe, start, err)
	}
	return h.ok(c, transcript, resourceTranscribe, start)
}

// Speak handles POST /audio/speak
func (h *Handler) Speak(c echo.Context) error {
	start := requestStart(c)

	var req SpeakRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, resourceSpeak, start, err)
	}

	artifact, err := h.speech.Synthesize(c.Request().Context(), req.Text, req.Voice)
	if err != nil {
		return h.fail(c, resourceSpeak, start, err)
	}
	return h.ok(c, artifact, resourceSpeak, start)
}

// Upload handles POST /audio/upload
func (h *Handler) Upload(c echo.Context) error {
	start := requestStart(c)

	data, err := readFormFile(c, "file")
	if err != nil {
		return h.fail(c, resourceUpload, start, err)
	}

	upload, err := h.speech.StoreUpload(data)
	if err != nil {
		return h.fail(c, resourceUpload, start, err)
	}
	return h.ok(c, upload, resourceUpload, start)
}

// GenerateVideo handles POST /video/generate
func (h *Handler) GenerateVideo(c echo.Context) error {
	start := requestStart(c)

	var req GenerateVideoRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, resourceGenerate, start, err)
	}
	image, err := readFormFile(c, "image")
	if err != nil {
		return h.fail(c, resourceGenerate, start, err)
	}

	video, err := h.video.Generate(c.Request().Context(), entities.VideoRequest{
		Image:     image,
		AudioPath: req.AudioPath,
		ClientID:  req.ClientID,
	})
	if err != nil {
		return h.fail(c, resourceGenerate, start, err)
	}
	return h.ok(c, video, resourceGenerate, start)
}

// StreamVideo handles GET /video/stream/:video_id
func (h *Handler) StreamVideo(c echo.Context) error {
	start := requestStart(c)

	p, err := h.video.Locate(c.Param("video_id"))
	if err != nil {
		return h.fail(c, resourceStream, start, err)
	}
	return h.ok(c, VideoLocation{VideoPath: p}, resourceStream, start)
}

// Reply handles POST /conversation/reply
func (h *Handler) Reply(c echo.Context) error {
	start := requestStart(c)

	var req ConversationReplyRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, resourceReply, start, err)
	}
	reply, err := parseFormBool(c, "reply", false)
	if err != nil {
		return h.fail(c, resourceReply, start, err)
	}
	image, err := readFormFile(c, "image")
	if err != nil {
		return h.fail(c, resourceReply, start, err)
	}

	turn, err := h.conversation.Reply(c.Request().Context(), entities.ConversationRequest{
		Text:     req.Text,
		Voice:    req.Voice,
		Image:    image,
		Reply:    reply,
		ClientID: req.ClientID,
	})
	if err != nil {
		return h.fail(c, resourceReply, start, err)
	}
	return h.ok(c, turn, resourceReply, start)
}

func (h *Handler) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Wrap(apperr.InvalidInput, err, "Invalid request")
	}
	return c.Validate(req)
}

func (h *Handler) ok(c echo.Context, data any, resource string, start time.Time) error {
	return c.JSON(http.StatusOK, h.responder.Success(http.StatusOK, data, resource, start))
}

// fail writes err as a Fail envelope with the status and code of its kind
func (h *Handler) fail(c echo.Context, resource string, start time.Time, err error) error {
	kind := apperr.KindOf(err)
	mapping := apperr.Lookup(kind)
	if h.uniformErrors {
		mapping = apperr.Lookup(apperr.Unexpected)
	}

	fields := []zap.Field{
		zap.String("resource", resource),
		zap.String("kind", kind.String()),
		zap.Int("status", mapping.Status),
		zap.Error(err),
	}
	if mapping.Status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Warn("Request rejected", fields...)
	}

	return c.JSON(mapping.Status, h.responder.Failure(mapping.Status, mapping.Code, err.Error(), resource, start))
}

// ErrorHandler renders errors that escape handlers (unknown routes, missing
// static files, recovered panics) as envelopes.
func (h *Handler) ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	code := apperr.CodeUnexpected
	message := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		code = status * 100
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	} else {
		h.logger.Error("Unhandled error", zap.String("path", c.Request().URL.Path), zap.Error(err))
	}

	envelope := h.responder.Failure(status, code, message, c.Path(), requestStart(c))
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, envelope)
	}
	if err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// StartTimer records when the request arrived so every envelope reports the
// full elapsed time.
func StartTimer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(startKey, time.Now())
			return next(c)
		}
	}
}

func requestStart(c echo.Context) time.Time {
	if t, ok := c.Get(startKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

func readFormFile(c echo.Context, name string) ([]byte, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, apperr.New(apperr.InvalidInput, name+" is required")
		}
		return nil, apperr.Wrap(apperr.InvalidInput, err, "Invalid multipart form")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, err, "Failed to open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, err, "Failed to read upload")
	}
	return data, nil
}

// parseFormBool reads a boolean form value, returning def when absent
func parseFormBool(c echo.Context, name string, def bool) (bool, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.New(apperr.InvalidInput, name+" must be a boolean")
	}
	return v, nil
}
