// Package janitor removes temporary render and transcription inputs that a
// crashed or killed request left behind. Generated videos and speech are
// never touched.
package janitor

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mhire/liveavatar/internal/assets"
)

const requestPrefix = "REQ-"

type Config struct {
	// Schedule accepts the standard five-field syntax and descriptors such
	// as "@every 15m".
	Schedule string
	MaxAge   time.Duration
	// SpeechFormat is the extension synthesized speech is written with.
	// Transcription temps are not swept when it is "wav", since the two
	// cannot be told apart.
	SpeechFormat string
}

// Janitor sweeps the asset directories on a cron schedule
type Janitor struct {
	cron       *cron.Cron
	audio      *assets.Store
	video      *assets.Store
	maxAge     time.Duration
	sweepAudio bool
	logger     *zap.Logger
}

// New schedules a sweep
func New(cfg Config, audio, video *assets.Store, logger *zap.Logger) (*Janitor, error) {
	j := &Janitor{
		audio:      audio,
		video:      video,
		maxAge:     cfg.MaxAge,
		sweepAudio: !strings.EqualFold(cfg.SpeechFormat, "wav"),
		logger:     logger,
	}

	cl := cronLogger{logger}
	j.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := j.cron.AddFunc(cfg.Schedule, func() { j.Sweep() }); err != nil {
		return nil, err
	}
	return j, nil
}

// Start starts the scheduler
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("Janitor started", zap.Duration("maxAge", j.maxAge))
}

// Stop stops the scheduler and waits for a running sweep
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("Janitor stopped")
}

// Sweep removes stale temporary files and returns how many were removed
func (j *Janitor) Sweep() int {
	cutoff := time.Now().Add(-j.maxAge)
	removed := j.sweepDir(j.video, cutoff, isStaleImage)
	if j.sweepAudio {
		removed += j.sweepDir(j.audio, cutoff, isStaleAudio)
	}
	if removed > 0 {
		j.logger.Info("Removed stale temporary files", zap.Int("count", removed))
	}
	return removed
}

func (j *Janitor) sweepDir(store *assets.Store, cutoff time.Time, match func(name string) bool) int {
	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		j.logger.Warn("Failed to list directory", zap.String("dir", store.Dir()), zap.Error(err))
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		p := store.Path(entry.Name())
		if err := store.Remove(p); err != nil {
			j.logger.Warn("Failed to remove stale file", zap.String("path", p), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// Render inputs are REQ-{id}.{png,jpg,...} next to the REQ-{id}.mp4 outputs.
func isStaleImage(name string) bool {
	return strings.HasPrefix(name, requestPrefix) && strings.ToLower(filepath.Ext(name)) != ".mp4"
}

// Transcription temps are always REQ-{id}.wav.
func isStaleAudio(name string) bool {
	return strings.HasPrefix(name, requestPrefix) && strings.ToLower(filepath.Ext(name)) == ".wav"
}

type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
