package audio

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockPlayer implements Player without producing sound. Playback takes the
// real duration of the samples scaled by DelayFactor.
type MockPlayer struct {
	mu      sync.Mutex
	played  [][]int16
	closed  bool
	opts    Options
	playErr error

	// DelayFactor scales simulated playback time; 0 returns immediately.
	DelayFactor float64
}

// NewMockPlayer creates a mock for audio at sampleRate.
func NewMockPlayer(sampleRate int) *MockPlayer {
	return &MockPlayer{opts: DefaultOptions(sampleRate)}
}

// FailWith makes every later Play return err.
func (mp *MockPlayer) FailWith(err error) {
	mp.mu.Lock()
	mp.playErr = err
	mp.mu.Unlock()
}

// Play records samples and simulates their duration.
func (mp *MockPlayer) Play(ctx context.Context, samples []int16) error {
	mp.mu.Lock()
	if mp.closed {
		mp.mu.Unlock()
		return errors.New("player is closed")
	}
	if mp.playErr != nil {
		err := mp.playErr
		mp.mu.Unlock()
		return err
	}
	mp.played = append(mp.played, append([]int16(nil), samples...))
	delay := time.Duration(float64(playDuration(samples, mp.opts)) * mp.DelayFactor)
	mp.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// Played returns every utterance played so far.
func (mp *MockPlayer) Played() [][]int16 {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([][]int16(nil), mp.played...)
}

// Close marks the player closed.
func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.closed = true
	return nil
}
