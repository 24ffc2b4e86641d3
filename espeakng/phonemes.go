package espeakng

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// TextToPhonemes converts text to phonemes using the strategy in opts.
// For MbrolaFile the phonemes are written to the caller's file and the
// returned string is empty.
func (s *Speaker) TextToPhonemes(text string, opts PhonemeGenOptions) (string, error) {
	if err := s.check("TextToPhonemes"); err != nil {
		return "", err
	}

	switch o := opts.(type) {
	case Standard:
		return s.standardPhonemes(text, o)
	case *Standard:
		return s.standardPhonemes(text, *o)
	case Mbrola, *Mbrola:
		return s.mbrolaPhonemes(text, nil)
	case MbrolaFile:
		return s.mbrolaFilePhonemes(text, o.File)
	case *MbrolaFile:
		return s.mbrolaFilePhonemes(text, o.File)
	case nil:
		return s.standardPhonemes(text, Standard{})
	default:
		return "", &Error{Kind: KindMisuse, Op: "TextToPhonemes", Err: fmt.Errorf("unsupported phoneme options %T", opts)}
	}
}

func (s *Speaker) standardPhonemes(text string, o Standard) (string, error) {
	if err := checkText(text); err != nil {
		return "", err
	}
	mode := o.TextMode
	if mode == 0 {
		mode = TextModeUTF8
	}
	clauses := s.backend.TextToPhonemes(text, mode, o.PhonemeMode)
	return strings.Join(clauses, "\n"), nil
}

func (s *Speaker) mbrolaFilePhonemes(text string, file Fder) (string, error) {
	if f, ok := file.(*os.File); file == nil || (ok && f == nil) {
		return "", &Error{Kind: KindMisuse, Op: "TextToPhonemes", Err: ErrNoPhonemeFile}
	}
	return s.mbrolaPhonemes(text, file)
}

// mbrolaPhonemes captures the mbrola phoneme trace of a synthesis pass,
// either into an anonymous memory file (file == nil) or into file.
func (s *Speaker) mbrolaPhonemes(text string, file Fder) (string, error) {
	const op = "TextToPhonemes"

	if !s.CurrentVoice().IsMbrola() {
		return "", &Error{Kind: KindMisuse, Op: op, Err: ErrMbrolaWithoutVoice}
	}

	var fd int
	var err error
	if file == nil {
		fd, err = unix.MemfdCreate("espeakng-phonemes", 0)
	} else {
		// The stream closes the descriptor it wraps; keep the caller's own.
		fd, err = unix.Dup(int(file.Fd()))
	}
	if err != nil {
		return "", errnoError(op, err)
	}

	stream, err := s.backend.OpenTrace(fd)
	if err != nil {
		_ = unix.Close(fd)
		return "", err
	}

	log.Debug("Redirecting phoneme trace", "inMemory", file == nil)
	s.backend.SetPhonemeTrace(stream)
	synthErr := s.synthesize(text, nil)
	s.backend.SetPhonemeTrace(nil)

	if file != nil {
		if err := stream.Close(); err != nil && synthErr == nil {
			return "", ioError(op, err)
		}
		return "", synthErr
	}

	return readTrace(op, fd, stream, synthErr)
}

// readTrace takes ownership of fd away from stream and reads what the
// engine wrote. stream is always closed before returning.
func readTrace(op string, fd int, stream TraceStream, synthErr error) (string, error) {
	rewindErr := stream.Rewind()
	dup, dupErr := unix.Dup(fd)
	closeErr := stream.Close()

	if dupErr != nil {
		return "", errnoError(op, dupErr)
	}
	f := os.NewFile(uintptr(dup), "espeakng-phonemes")
	defer f.Close()

	if synthErr != nil {
		return "", synthErr
	}
	if rewindErr != nil {
		return "", ioError(op, rewindErr)
	}
	if closeErr != nil {
		return "", ioError(op, closeErr)
	}

	b, err := io.ReadAll(transform.NewReader(f, encoding.UTF8Validator))
	if err != nil {
		if errors.Is(err, encoding.ErrInvalidUTF8) {
			return "", &Error{Kind: KindDecode, Op: op, Err: err}
		}
		return "", ioError(op, err)
	}
	return string(b), nil
}
