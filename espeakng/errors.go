package espeakng

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// statusMessageLen is the size of the buffer handed to the native
// status-message formatter. Longer messages are truncated.
const statusMessageLen = 512

// StatusCode is a status returned by libespeak-ng. Zero is success.
type StatusCode uint32

// Known native statuses.
const (
	StatusOK                       StatusCode = 0
	StatusCompileError             StatusCode = 0x100001FF
	StatusVersionMismatch          StatusCode = 0x100002FF
	StatusFifoBufferFull           StatusCode = 0x100003FF
	StatusNotInitialized           StatusCode = 0x100004FF
	StatusAudioError               StatusCode = 0x100005FF
	StatusVoiceNotFound            StatusCode = 0x100006FF
	StatusMbrolaNotFound           StatusCode = 0x100007FF
	StatusMbrolaVoiceNotFound      StatusCode = 0x100008FF
	StatusEventBufferFull          StatusCode = 0x100009FF
	StatusNotSupported             StatusCode = 0x10000AFF
	StatusUnsupportedPhonemeFormat StatusCode = 0x10000BFF
	StatusNoSpectFrames            StatusCode = 0x10000CFF
	StatusEmptyPhonemeManifest     StatusCode = 0x10000DFF
	StatusSpeechStopped            StatusCode = 0x10000EFF
	StatusUnknownPhonemeFeature    StatusCode = 0x10000FFF
	StatusUnknownTextEncoding      StatusCode = 0x100010FF
)

var statusNames = map[StatusCode]string{
	StatusCompileError:             "compile error",
	StatusVersionMismatch:          "version mismatch",
	StatusFifoBufferFull:           "fifo buffer full",
	StatusNotInitialized:           "not initialized",
	StatusAudioError:               "audio error",
	StatusVoiceNotFound:            "voice not found",
	StatusMbrolaNotFound:           "mbrola not found",
	StatusMbrolaVoiceNotFound:      "mbrola voice not found",
	StatusEventBufferFull:          "event buffer full",
	StatusNotSupported:             "not supported",
	StatusUnsupportedPhonemeFormat: "unsupported phoneme format",
	StatusNoSpectFrames:            "no spect frames",
	StatusEmptyPhonemeManifest:     "empty phoneme manifest",
	StatusSpeechStopped:            "speech stopped",
	StatusUnknownPhonemeFeature:    "unknown phoneme feature",
	StatusUnknownTextEncoding:      "unknown text encoding",
}

// Sentinels for errors.Is against any error returned by this package.
var (
	ErrVoiceNotFound       error = StatusVoiceNotFound
	ErrNotInitialized      error = StatusNotInitialized
	ErrMbrolaWithoutVoice        = errors.New("espeak-ng cannot generate mbrola phonemes without an mbrola voice set")
	ErrNativeUnavailable         = errors.New("espeak-ng native library is not available in this build")
	ErrTerminated                = errors.New("espeak-ng has been terminated for this process")
	ErrRetryExhausted            = errors.New("retry budget exhausted")
	ErrInvalidParameter          = errors.New("parameter value out of range")
	ErrInvalidText               = errors.New("text is not valid UTF-8")
	ErrNoEngine                  = errors.New("speaker has no engine; obtain it from Initialise")
	ErrNoPhonemeFile             = errors.New("MbrolaFile needs an open file; use Mbrola for an in-memory trace")
)

// Known reports whether c is one of the statuses libespeak-ng documents.
func (c StatusCode) Known() bool {
	_, ok := statusNames[c]
	return ok
}

// String returns a short, stable name for the status.
func (c StatusCode) String() string {
	if c == StatusOK {
		return "ok"
	}
	if name, ok := statusNames[c]; ok {
		return name
	}
	return fmt.Sprintf("status 0x%08X", uint32(c))
}

// Error uses the native message formatter when one is linked in.
func (c StatusCode) Error() string {
	if formatStatus != nil {
		if msg := formatStatus(c); msg != "" {
			return msg
		}
	}
	return "espeak-ng: " + c.String()
}

// formatStatus is set by the native backend to espeak_ng_GetStatusCodeMessage.
var formatStatus func(StatusCode) string

// ErrorKind classifies an Error.
type ErrorKind int

const (
	// KindNative is a recognised native status.
	KindNative ErrorKind = iota
	// KindMisuse is a call made in a state that cannot satisfy it.
	KindMisuse
	// KindOtherNative is an unrecognised native status or a failing libc call.
	KindOtherNative
	// KindIO is a file I/O failure while handling trace output.
	KindIO
	// KindDecode is trace output that is not valid UTF-8.
	KindDecode
	// KindRetryExhausted means a bounded native retry gave up.
	KindRetryExhausted
	// KindTerminated means the engine was already torn down.
	KindTerminated
)

func (k ErrorKind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindMisuse:
		return "misuse"
	case KindOtherNative:
		return "other-native"
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindRetryExhausted:
		return "retry-exhausted"
	case KindTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Error is returned by every Speaker operation that fails.
type Error struct {
	Kind   ErrorKind
	Op     string     // operation being performed, e.g. "SetVoiceByName"
	Status StatusCode // set for KindNative and KindOtherNative
	Errno  unix.Errno // OS error number captured with the status, if any
	Err    error      // underlying cause
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.Kind == KindNative:
		msg = e.Status.Error()
	case e.Kind == KindOtherNative && e.Status != StatusOK:
		msg = e.Status.String()
		if e.Errno != 0 {
			msg = fmt.Sprintf("%s (errno %d: %v)", msg, int(e.Errno), e.Errno)
		}
	case e.Err != nil:
		msg = e.Err.Error()
	default:
		msg = e.Kind.String()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes the status sentinel for native errors, otherwise the cause.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind == KindNative {
		errs = append(errs, e.Status)
	}
	if e.Errno != 0 {
		errs = append(errs, e.Errno)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsRecoverable reports whether the engine can keep being used after err.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindTerminated:
			return false
		case KindNative:
			switch e.Status {
			case StatusVersionMismatch, StatusNotInitialized, StatusEmptyPhonemeManifest:
				return false
			}
		}
	}
	return !errors.Is(err, ErrNativeUnavailable)
}

// handleError maps a native status to a typed error. errno is whatever the
// OS reported alongside the call; it is only kept for unrecognised statuses.
func handleError(op string, code StatusCode, errno error) error {
	if code == StatusOK {
		return nil
	}
	if code.Known() {
		return &Error{Kind: KindNative, Op: op, Status: code}
	}
	e := &Error{Kind: KindOtherNative, Op: op, Status: code}
	var en unix.Errno
	if errors.As(errno, &en) {
		e.Errno = en
	}
	return e
}

func ioError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func errnoError(op string, err error) error {
	e := &Error{Kind: KindOtherNative, Op: op, Err: err}
	var en unix.Errno
	if errors.As(err, &en) {
		e.Errno = en
	}
	return e
}
