package audio

import (
	"context"
	"errors"
	"time"

	"github.com/dgnsrekt/espeakng-go/pkg/pcm"
)

// ErrUnavailable is returned when the build has no audio output.
var ErrUnavailable = errors.New("audio not available in nocgo build")

// Player plays whole utterances.
type Player interface {
	// Play blocks until samples have been played or ctx is done.
	Play(ctx context.Context, samples []int16) error
	Close() error
}

// Options configure a device player.
type Options struct {
	SampleRate int
	// BufferSize is the device buffer; 0 picks a platform default.
	BufferSize time.Duration
	// Volume from 0.0 to 1.0.
	Volume float64
	// Attempts bounds device initialisation retries.
	Attempts     int
	RetryDelay   time.Duration
	ReadyTimeout time.Duration
}

// DefaultOptions returns options for audio at sampleRate.
func DefaultOptions(sampleRate int) Options {
	return Options{
		SampleRate:   sampleRate,
		Volume:       1.0,
		Attempts:     2,
		RetryDelay:   100 * time.Millisecond,
		ReadyTimeout: 5 * time.Second,
	}
}

// tail is how long playback keeps running after the last sample was handed
// to the device, so the device buffer drains.
func tail(o Options) time.Duration {
	if o.BufferSize > 0 {
		return o.BufferSize
	}
	return defaultBufferSize()
}

// playDuration is the expected wall time of samples at o.
func playDuration(samples []int16, o Options) time.Duration {
	return pcm.Duration(len(samples), pcm.DefaultFormat(o.SampleRate))
}
