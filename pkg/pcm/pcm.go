// Package pcm converts between 16-bit PCM samples, their little-endian byte
// form and WAV files.
package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// Channels is the channel count produced by espeak-ng (mono).
	Channels = 1
	// BitDepth is the bit depth per sample.
	BitDepth = 16
	// BytesPerSample is the number of bytes per mono sample.
	BytesPerSample = BitDepth / 8
)

// Format describes PCM audio.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat returns signed 16-bit little-endian mono at sampleRate.
func DefaultFormat(sampleRate int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   Channels,
		BitDepth:   BitDepth,
	}
}

// FrameSize returns the number of bytes per frame.
func (f Format) FrameSize() int {
	return f.BitDepth / 8 * f.Channels
}

// ByteRate returns bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.FrameSize()
}

// Validate checks that data is a whole number of frames in f.
func Validate(data []byte, f Format) error {
	if len(data) == 0 {
		return errors.New("empty PCM data")
	}
	if fs := f.FrameSize(); fs == 0 || len(data)%fs != 0 {
		return fmt.Errorf("PCM data length %d is not aligned to %d-byte frames", len(data), f.FrameSize())
	}
	return nil
}

// Duration returns the play time of n samples at f.
func Duration(n int, f Format) time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	frames := n / f.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// SamplesToBytes encodes samples as little-endian 16-bit.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples decodes little-endian 16-bit samples. A trailing odd byte
// is ignored.
func BytesToSamples(data []byte) []int16 {
	out := make([]int16, len(data)/BytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// GenerateSilence returns d of silent samples at f.
func GenerateSilence(d time.Duration, f Format) []int16 {
	n := int(d * time.Duration(f.SampleRate) / time.Second)
	return make([]int16, n*f.Channels)
}
