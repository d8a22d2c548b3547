// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Matching thresholds
const (
	// FaceDistanceThreshold is the maximum descriptor distance (exclusive) for
	// a live face to match the reference face. Lower values = stricter matching.
	FaceDistanceThreshold = 0.6

	// AudioSimilarityThreshold is the minimum cosine similarity (exclusive)
	// returned by the audio-auth service for a voice match.
	AudioSimilarityThreshold = 0.5
)

// Capture constants
const (
	// RecordWindow is how long the microphone records before the timer stops it.
	RecordWindow = 5 * time.Second

	// MaxImageSize is the maximum dimension (width or height) of a frame sent
	// to the face embedding server.
	MaxImageSize = 1280
)

// Attempt constants
const (
	// AttemptRetention is how long resolved attempts are kept in memory so
	// clients can still read their outcome.
	AttemptRetention = 15 * time.Minute

	// EventChannelBuffer is the buffer size for attempt event channels
	EventChannelBuffer = 100
)
