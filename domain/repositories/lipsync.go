package repositories

import "context"

// LipSyncRenderer drives an external talking-head program.
type LipSyncRenderer interface {
	Render(ctx context.Context, job RenderJob) (*RenderResult, error)
}

// RenderJob names the inputs and the expected output of one render.
type RenderJob struct {
	RequestID  string
	ImagePath  string
	AudioPath  string
	ResultDir  string
	OutputName string
}

type RenderResult struct {
	Stdout   string
	Stderr   string
	Duration int64 // milliseconds
}
