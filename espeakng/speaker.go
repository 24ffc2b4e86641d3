package espeakng

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/espeakng-go/pkg/pcm"
)

// DefaultVoice is selected by Initialise.
const DefaultVoice = "gmw/en"

// Options configure the engine on the first Initialise call.
type Options struct {
	// VoicePath is the espeak-ng data directory; "" uses the built-in default.
	VoicePath string
	// Voice is selected after initialisation. Defaults to DefaultVoice.
	Voice string
	// BufferLength is milliseconds of audio per callback, 0 for the engine default.
	BufferLength int
	// MbrolaAttempts bounds how often an mbrola voice switch is tried when
	// the engine spuriously reports it as missing. 1 disables retrying.
	MbrolaAttempts int
	// MbrolaRetryDelay is the first backoff delay, doubled per attempt up to
	// MbrolaMaxRetryDelay.
	MbrolaRetryDelay    time.Duration
	MbrolaMaxRetryDelay time.Duration
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Voice:               DefaultVoice,
		MbrolaAttempts:      5,
		MbrolaRetryDelay:    10 * time.Millisecond,
		MbrolaMaxRetryDelay: 200 * time.Millisecond,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithVoicePath sets the espeak-ng data directory.
func WithVoicePath(path string) Option {
	return func(o *Options) { o.VoicePath = path }
}

// WithVoice selects the voice set after initialisation.
func WithVoice(voice string) Option {
	return func(o *Options) { o.Voice = voice }
}

// WithBufferLength sets the callback buffer length in milliseconds.
func WithBufferLength(ms int) Option {
	return func(o *Options) { o.BufferLength = ms }
}

// WithMbrolaRetry bounds the mbrola voice switch retry.
func WithMbrolaRetry(attempts int, delay, maxDelay time.Duration) Option {
	return func(o *Options) {
		o.MbrolaAttempts = attempts
		o.MbrolaRetryDelay = delay
		o.MbrolaMaxRetryDelay = maxDelay
	}
}

// Handle guards the process-wide Speaker. Hold it with Lock or Do before
// calling any Speaker method.
type Handle struct {
	mu      sync.Mutex
	speaker *Speaker
}

// Lock acquires the engine and returns the Speaker. Call Unlock when done.
func (h *Handle) Lock() *Speaker {
	h.mu.Lock()
	return h.speaker
}

// Unlock releases the engine.
func (h *Handle) Unlock() {
	h.mu.Unlock()
}

// Do runs fn with the engine locked.
func (h *Handle) Do(fn func(s *Speaker) error) error {
	s := h.Lock()
	defer h.Unlock()
	return fn(s)
}

var (
	slotMu     sync.Mutex
	slot       *Handle
	terminated bool

	// newBackend is swapped out by tests.
	newBackend = defaultBackend
)

// Initialise starts espeak-ng once per process and returns its Handle. Later
// calls return the same Handle and ignore opts. If initialisation fails no
// Handle is published and a later call may try again.
func Initialise(opts ...Option) (*Handle, error) {
	slotMu.Lock()
	defer slotMu.Unlock()

	if terminated {
		return nil, &Error{Kind: KindTerminated, Op: "Initialise", Err: ErrTerminated}
	}
	if slot != nil {
		return slot, nil
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	backend, err := newBackend()
	if err != nil {
		return nil, err
	}

	s, err := newSpeaker(backend, o)
	if err != nil {
		return nil, err
	}

	slot = &Handle{speaker: s}
	return slot, nil
}

// Get returns the Handle if Initialise has succeeded, otherwise nil.
func Get() *Handle {
	slotMu.Lock()
	defer slotMu.Unlock()
	return slot
}

// Shutdown terminates the engine. The process cannot initialise it again.
func Shutdown() error {
	slotMu.Lock()
	if terminated {
		slotMu.Unlock()
		return nil
	}
	terminated = true
	h := slot
	slot = nil
	slotMu.Unlock()

	if h == nil {
		return nil
	}

	s := h.Lock()
	defer h.Unlock()
	s.closed = true
	log.Debug("Terminating espeak-ng")
	return s.backend.Terminate()
}

// Speaker owns the native engine. It is only reachable through a Handle.
type Speaker struct {
	backend    Backend
	opts       Options
	sampleRate int
	closed     bool
}

func newSpeaker(backend Backend, o Options) (*Speaker, error) {
	log.Debug("Initialising espeak-ng", "voicePath", o.VoicePath, "voice", o.Voice)

	backend.SetSynthCallback()
	backend.InitializePath(o.VoicePath)
	if err := backend.Initialize(); err != nil {
		return nil, err
	}

	s := &Speaker{backend: backend, opts: o}
	if err := s.finishInit(); err != nil {
		// The core is up; tear it down so the next Initialise starts clean.
		if terr := backend.Terminate(); terr != nil {
			log.Warn("Failed to terminate espeak-ng after failed init", "error", terr)
		}
		return nil, err
	}
	return s, nil
}

func (s *Speaker) finishInit() error {
	if err := s.backend.InitializeOutput(s.opts.BufferLength); err != nil {
		return err
	}
	s.sampleRate = s.backend.SampleRate()

	voice := s.opts.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	return s.SetVoiceRaw(voice)
}

func (s *Speaker) check(op string) error {
	switch {
	case s == nil || s.backend == nil:
		return &Error{Kind: KindMisuse, Op: op, Err: ErrNoEngine}
	case s.closed:
		return &Error{Kind: KindTerminated, Op: op, Err: ErrTerminated}
	}
	return nil
}

// usable gates the getters, which report zero values instead of an error.
func (s *Speaker) usable() bool {
	return s != nil && s.backend != nil && !s.closed
}

// SampleRate is the engine's output rate in Hz.
func (s *Speaker) SampleRate() int { return s.sampleRate }

// CurrentVoice returns a copy of the active voice, or the zero Voice once
// the engine is shut down.
func (s *Speaker) CurrentVoice() Voice {
	if !s.usable() {
		return Voice{}
	}
	v, ok := s.backend.CurrentVoice()
	if !ok {
		fatal("espeak-ng current voice is NULL")
	}
	return v
}

// Voices lists installed voices in native enumeration order.
func (s *Speaker) Voices() []Voice {
	if !s.usable() {
		return nil
	}
	return s.backend.ListVoices()
}

// SetVoice selects v for future calls.
func (s *Speaker) SetVoice(v Voice) error {
	return s.SetVoiceRaw(v.Filename())
}

// SetVoiceRaw selects a voice by identifier, e.g. "gmw/en" or "mb/mb-en1".
func (s *Speaker) SetVoiceRaw(filename string) error {
	if err := s.check("SetVoice"); err != nil {
		return err
	}

	if !isMbrolaVoice(filename) {
		return s.backend.SetVoiceByName(filename)
	}

	// espeak-ng does not report missing mbrola voices reliably.
	_, dataPath := s.backend.Info()
	voiceFile := filepath.Join(dataPath, "voices", filename)
	if _, err := os.Stat(voiceFile); err != nil {
		log.Debug("Mbrola voice file missing", "path", voiceFile)
		return &Error{Kind: KindNative, Op: "SetVoiceByName", Status: StatusVoiceNotFound}
	}

	return s.setMbrolaVoice(filename)
}

// setMbrolaVoice retries while the engine spuriously reports the voice as
// missing, with a doubling delay between attempts.
func (s *Speaker) setMbrolaVoice(filename string) error {
	attempts := s.opts.MbrolaAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := s.opts.MbrolaRetryDelay

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			log.Debug("Retrying mbrola voice", "voice", filename, "attempt", i+1, "of", attempts, "delay", delay)
			time.Sleep(delay)
			delay *= 2
			if s.opts.MbrolaMaxRetryDelay > 0 && delay > s.opts.MbrolaMaxRetryDelay {
				delay = s.opts.MbrolaMaxRetryDelay
			}
		}

		err := s.backend.SetVoiceByName(filename)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVoiceNotFound) {
			return err
		}
		lastErr = err
	}

	if attempts == 1 {
		return lastErr
	}
	return &Error{
		Kind: KindRetryExhausted,
		Op:   "SetVoiceByName",
		Err:  fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr),
	}
}

// Parameter reads the current value of p, or its default when wantDefault is set.
func (s *Speaker) Parameter(p Parameter, wantDefault bool) int {
	if !s.usable() {
		return 0
	}
	return s.backend.Parameter(p, !wantDefault)
}

// SetParameter sets p to value, or adds value to it when relative is set.
// Absolute values outside p.Limits() are rejected before reaching the engine.
func (s *Speaker) SetParameter(p Parameter, value int, relative bool) error {
	if err := s.check("SetParameter"); err != nil {
		return err
	}
	if !relative {
		if err := p.Validate(value); err != nil {
			return &Error{Kind: KindMisuse, Op: "SetParameter", Err: err}
		}
	}
	return s.backend.SetParameter(p, value, relative)
}

// Info returns the engine version and its voice data directory.
func (s *Speaker) Info() (version, dataPath string) {
	if !s.usable() {
		return "", ""
	}
	return s.backend.Info()
}

// Synthesize renders text to 16-bit mono samples at SampleRate.
func (s *Speaker) Synthesize(text string) ([]int16, error) {
	buf := &audioBuffer{}
	if err := s.synthesize(text, buf); err != nil {
		return nil, err
	}
	return buf.take(), nil
}

// synthesize runs one blocking synthesis pass. buf may be nil when only the
// side effects of synthesis (such as a phoneme trace) are wanted.
func (s *Speaker) synthesize(text string, buf *audioBuffer) (err error) {
	if err := s.check("Synthesize"); err != nil {
		return err
	}
	if err := checkText(text); err != nil {
		return err
	}

	var userData uintptr
	if buf != nil {
		userData = registerBuffer(buf)
		defer releaseBuffer(userData)
	}

	m := startSynthesis(s.currentVoiceName(), text)
	defer func() {
		n := 0
		if buf != nil && err == nil {
			buf.mu.Lock()
			n = len(buf.samples)
			buf.mu.Unlock()
		}
		m.end(n, err)
	}()

	if err := s.backend.Synthesize(text, userData); err != nil {
		return err
	}
	return s.backend.Synchronize()
}

func (s *Speaker) currentVoiceName() string {
	if v, ok := s.backend.CurrentVoice(); ok {
		return v.Filename()
	}
	return ""
}

// SynthesizeToFile writes text as a mono 16-bit WAV file.
func (s *Speaker) SynthesizeToFile(w io.Writer, text string) error {
	samples, err := s.Synthesize(text)
	if err != nil {
		return err
	}
	if err := pcm.WriteWAV(w, pcm.DefaultFormat(s.sampleRate), samples); err != nil {
		return ioError("SynthesizeToFile", err)
	}
	return nil
}

// SynthesizeRawToFile writes text as headerless little-endian 16-bit samples.
func (s *Speaker) SynthesizeRawToFile(w io.Writer, text string) error {
	samples, err := s.Synthesize(text)
	if err != nil {
		return err
	}
	if _, err := w.Write(pcm.SamplesToBytes(samples)); err != nil {
		return ioError("SynthesizeRawToFile", err)
	}
	return nil
}
