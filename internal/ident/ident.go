// Package ident derives the identifiers used to name request artifacts.
package ident

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const requestPrefix = "REQ-"

var seq atomic.Uint64

// RequestID returns a fresh identifier for namespace, e.g. "tts" or "video".
// The key mixes wall-clock nanoseconds with a process-wide counter so two
// calls in the same clock tick still differ.
func RequestID(namespace string) string {
	key := namespace + "_" + strconv.FormatInt(time.Now().UnixNano(), 10) + "_" + strconv.FormatUint(seq.Add(1), 10)
	return RequestIDFromKey(key)
}

// RequestIDFromKey is the deterministic form: the same key always yields the
// same identifier.
func RequestIDFromKey(key string) string {
	return requestPrefix + uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String()
}

// GenerateFilename returns {prefix}_{YYYYmmdd_HHMMSS}_{8 hex}.{ext}.
func GenerateFilename(prefix, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, time.Now().Format("20060102_150405"), uuid.NewString()[:8], ext)
}
