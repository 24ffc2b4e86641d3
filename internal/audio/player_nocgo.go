//go:build nocgo

package audio

import (
	"context"
	"time"
)

// DevicePlayer stub for nocgo builds
type DevicePlayer struct{}

// NewDevicePlayer always fails without cgo.
func NewDevicePlayer(Options) (*DevicePlayer, error) {
	return nil, ErrUnavailable
}

func (p *DevicePlayer) Play(context.Context, []int16) error {
	return ErrUnavailable
}

func (p *DevicePlayer) Close() error {
	return nil
}

func defaultBufferSize() time.Duration {
	return 50 * time.Millisecond
}
