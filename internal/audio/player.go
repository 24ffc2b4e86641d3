//go:build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/espeakng-go/pkg/pcm"
)

// oto allows one context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

// DevicePlayer plays through the default output device.
type DevicePlayer struct {
	ctx  *oto.Context
	opts Options
	mu   sync.Mutex
}

// NewDevicePlayer opens the audio device, retrying as configured. The first
// call fixes the device sample rate for the rest of the process.
func NewDevicePlayer(o Options) (*DevicePlayer, error) {
	otoOnce.Do(func() {
		otoCtx, otoErr = newContextWithRetry(o)
		otoRate = o.SampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != o.SampleRate {
		return nil, fmt.Errorf("audio device already open at %d Hz, cannot play %d Hz", otoRate, o.SampleRate)
	}
	return &DevicePlayer{ctx: otoCtx, opts: o}, nil
}

func newContextWithRetry(o Options) (*oto.Context, error) {
	attempts := o.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			log.Debug("Retrying audio context initialization", "attempt", i+1, "of", attempts)
			time.Sleep(o.RetryDelay)
		}

		ctx, err := newContext(o)
		if err != nil {
			lastErr = err
			log.Debug("Audio context initialization failed", "attempt", i+1, "error", err)
			continue
		}

		log.Debug("Audio context initialized", "attempt", i+1, "sample_rate", o.SampleRate)
		return ctx, nil
	}

	return nil, fmt.Errorf("failed to initialize audio context after %d attempts: %w", attempts, lastErr)
}

func newContext(o Options) (*oto.Context, error) {
	options := &oto.NewContextOptions{
		SampleRate:   o.SampleRate,
		ChannelCount: pcm.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   tail(o),
	}

	ctx, ready, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}

	timeout := o.ReadyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-ready:
		return ctx, nil
	case <-time.After(timeout):
		// oto v3 contexts have no Close; it is left to the GC.
		return nil, fmt.Errorf("audio context initialization timeout after %v", timeout)
	}
}

// Play plays samples and waits for them to finish.
func (p *DevicePlayer) Play(ctx context.Context, samples []int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(samples) == 0 {
		return nil
	}

	// The reader keeps the byte slice alive for the whole playback.
	player := p.ctx.NewPlayer(bytes.NewReader(pcm.SamplesToBytes(samples)))
	defer player.Close()

	player.SetVolume(p.opts.Volume)
	player.Play()

	log.Debug("Playing audio", "samples", len(samples), "duration", playDuration(samples, p.opts))

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	if err := player.Err(); err != nil {
		return fmt.Errorf("audio playback failed: %w", err)
	}

	// IsPlaying turns false once the last bytes are queued, not heard.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(tail(p.opts)):
	}
	return nil
}

// Close releases the player. The shared device context stays open.
func (p *DevicePlayer) Close() error {
	return nil
}

func defaultBufferSize() time.Duration {
	switch runtime.GOOS {
	case "darwin":
		// macOS benefits from larger buffers
		return 100 * time.Millisecond
	case "windows":
		return 80 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}
