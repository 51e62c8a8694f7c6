package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/adapters/groq"
	"github.com/mhire/liveavatar/adapters/lipsync"
	"github.com/mhire/liveavatar/adapters/llm"
	"github.com/mhire/liveavatar/adapters/stt"
	"github.com/mhire/liveavatar/adapters/tts"
	"github.com/mhire/liveavatar/domain/repositories"
	"github.com/mhire/liveavatar/internal/api"
	"github.com/mhire/liveavatar/internal/assets"
	"github.com/mhire/liveavatar/internal/config"
	"github.com/mhire/liveavatar/internal/janitor"
	"github.com/mhire/liveavatar/internal/metrics"
	"github.com/mhire/liveavatar/internal/websocket"
	"github.com/mhire/liveavatar/usecase"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, opts config.Options, port int) error {
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Storage
	audioStore := assets.NewStore(cfg.Assets.AudioPath, logger)
	videoStore := assets.NewStore(cfg.Assets.VideoPath, logger)
	for _, s := range []*assets.Store{audioStore, videoStore} {
		if err := s.EnsureDir(); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", s.Dir(), err)
		}
	}

	// Initialize adapters
	groqClient := groq.NewClient(cfg.Groq.APIKey, cfg.Groq.BaseURL, cfg.Speech.Timeout)
	remoteSTT := stt.NewGroqSpeechToText(groqClient, cfg.Groq.APIKey, cfg.Groq.STTModel, logger)

	var fallbackSTT repositories.SpeechToText
	switch cfg.Speech.STTFallback {
	case config.STTFallbackGoogle:
		fallbackSTT = stt.NewGoogleSpeechToText(cfg.Speech.GoogleLanguage, logger)
	default:
		fallbackSTT = stt.NewLocalSpeechToText(cfg.Speech.LocalEncoderPath, cfg.Speech.LocalDecoderPath, logger)
	}

	textToSpeech, err := newTextToSpeech(cfg, groqClient, logger)
	if err != nil {
		return err
	}

	var chatModel repositories.LargeLanguageModel
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiLLM(cmd.Context(), llm.GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			Timeout: cfg.Speech.Timeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}
		chatModel = gemini
	} else {
		logger.Info("GEMINI_API_KEY not set, conversation replies echo the input text")
	}

	renderer := lipsync.NewSadTalker(lipsync.SadTalkerConfig{
		Dir:         cfg.Render.SadTalkerPath,
		Python:      cfg.Render.Python,
		Timeout:     cfg.Render.Timeout,
		Concurrency: int64(cfg.Render.Concurrency),
		Enhancer:    cfg.Render.Enhancer,
		Size:        cfg.Render.Size,
		Preprocess:  cfg.Render.Preprocess,
		Still:       cfg.Render.Still,
	}, logger)
	if err := renderer.CheckInstallation(); err != nil {
		logger.Warn("SadTalker is not ready, video generation will fail", zap.Error(err))
	}

	m := metrics.New()

	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	// Initialize usecase services
	speechService := usecase.NewSpeechService(remoteSTT, fallbackSTT, textToSpeech, audioStore, m, usecase.SpeechOptions{
		STTModel: cfg.Groq.STTModel,
		Language: cfg.Speech.GoogleLanguage,
		Timeout:  cfg.Speech.Timeout,
	}, logger)
	videoService := usecase.NewVideoService(renderer, videoStore, hub, m, logger)
	chatService := usecase.NewChatService(chatModel, logger)
	turnTimeout := 2*cfg.Speech.Timeout + cfg.Render.Timeout + time.Minute
	conversationService := usecase.NewConversationService(chatService, speechService, videoService, hub, turnTimeout, logger)

	sweeper, err := janitor.New(janitor.Config{
		Schedule:     cfg.Janitor.Schedule,
		MaxAge:       cfg.Janitor.MaxAge,
		SpeechFormat: textToSpeech.Format(),
	}, audioStore, videoStore, logger)
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", cfg.Janitor.Schedule, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// HTTP
	e := echo.New()
	handler := api.NewHandler(speechService, videoService, conversationService, api.NewResponder(cfg.APIVersion), cfg.APIUniformErrors, logger)
	api.InitMiddleware(e, handler, m, logger)
	api.InitRoutes(e, handler, hub, m, api.RouteOptions{
		Prefix:   cfg.APIPrefix(),
		Version:  cfg.APIVersion,
		AudioDir: audioStore.Dir(),
		VideoDir: videoStore.Dir(),
	}, logger)

	addr := ":" + strconv.Itoa(cfg.Port)
	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Server started",
		zap.String("addr", addr),
		zap.String("version", version),
		zap.String("env", cfg.AppEnv),
		zap.String("tts", textToSpeech.Name()),
		zap.String("sttFallback", fallbackSTT.Name()),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("Server stopped", zap.Error(err))
		return err
	}

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zc.Level = level
	return zc.Build()
}

func newTextToSpeech(cfg *config.Config, client *openai.Client, logger *zap.Logger) (repositories.TextToSpeech, error) {
	if cfg.Speech.TTSProvider != config.TTSProviderElevenLabs {
		return tts.NewGroqTextToSpeech(client, cfg.Groq.APIKey, cfg.Groq.TTSModel, cfg.Groq.TTSFormat, logger), nil
	}
	eleven, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
		APIKey:  cfg.Eleven.APIKey,
		VoiceID: cfg.Eleven.VoiceID,
		ModelID: cfg.Eleven.ModelID,
		Timeout: cfg.Speech.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create eleven labs client: %w", err)
	}
	return eleven, nil
}
