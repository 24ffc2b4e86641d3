package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the size of the canonical WAV header written by WriteWAV.
const HeaderSize = 44

// maxFmtChunkSize covers WAVE_FORMAT_EXTENSIBLE with room to spare.
const maxFmtChunkSize = 64

// ErrNotWAV is returned by ReadWAV for data without a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a WAV file")

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// WriteWAV writes samples as a PCM WAV file in f.
func WriteWAV(w io.Writer, f Format, samples []int16) error {
	if f.BitDepth != BitDepth {
		return fmt.Errorf("unsupported bit depth %d", f.BitDepth)
	}
	data := SamplesToBytes(samples)

	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(data)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.FrameSize()),
		BitsPerSample: uint16(f.BitDepth),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(data)),
	}

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return nil
}

// EncodeWAV returns samples as an in-memory WAV file.
func EncodeWAV(f Format, samples []int16) []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(samples)*BytesPerSample)
	_ = WriteWAV(&buf, f, samples)
	return buf.Bytes()
}

// ReadWAV reads a 16-bit PCM WAV file. Chunks other than "fmt " and "data"
// are skipped.
func ReadWAV(r io.Reader) (Format, []int16, error) {
	var riff struct {
		ID   [4]byte
		Size uint32
		Wave [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return Format{}, nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Wave[:]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var f Format
	var haveFmt bool
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			return Format{}, nil, fmt.Errorf("failed to read chunk header: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			if chunk.Size > maxFmtChunkSize {
				return Format{}, nil, fmt.Errorf("fmt chunk too large: %d bytes", chunk.Size)
			}
			body := make([]byte, chunk.Size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return Format{}, nil, fmt.Errorf("fmt chunk too short: %d bytes", len(body))
			}
			if tag := binary.LittleEndian.Uint16(body[0:]); tag != 1 {
				return Format{}, nil, fmt.Errorf("unsupported WAV format tag %d", tag)
			}
			f = Format{
				Channels:   int(binary.LittleEndian.Uint16(body[2:])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:])),
				BitDepth:   int(binary.LittleEndian.Uint16(body[14:])),
			}
			if f.BitDepth != BitDepth {
				return Format{}, nil, fmt.Errorf("unsupported bit depth %d", f.BitDepth)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, errors.New("data chunk before fmt chunk")
			}
			// The declared size is untrusted; grow with what is actually read.
			data, err := io.ReadAll(io.LimitReader(r, int64(chunk.Size)))
			if err != nil {
				return Format{}, nil, fmt.Errorf("failed to read data chunk: %w", err)
			}
			if int64(len(data)) < int64(chunk.Size) {
				return Format{}, nil, fmt.Errorf("failed to read data chunk: %w (%d of %d bytes)",
					io.ErrUnexpectedEOF, len(data), chunk.Size)
			}
			return f, BytesToSamples(data), nil
		default:
			skip := int64(chunk.Size) + int64(chunk.Size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Format{}, nil, fmt.Errorf("failed to skip %q chunk: %w", chunk.ID[:], err)
			}
		}
	}
}
