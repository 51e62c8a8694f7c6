package domain

import "fmt"

// RemoteError is a non-success reply from a remote speech provider.
type RemoteError struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ProcessError is a non-zero exit from an external program.
type ProcessError struct {
	Program  string `json:"program"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr"`
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("%s exited with code %d", e.Program, e.ExitCode)
}
