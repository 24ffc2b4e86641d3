package espeakng

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/espeakng-go/pkg/pcm"
)

func TestInitialiseIsIdempotent(t *testing.T) {
	b := useFakeBackend(t)
	created := 0
	newBackend = func() (Backend, error) {
		created++
		return b, nil
	}

	h1 := mustInitialise(t, WithVoicePath("/data"), WithBufferLength(300))
	h2 := mustInitialise(t, WithVoicePath("/ignored"))

	if h1 != h2 {
		t.Error("Initialise should return the same handle")
	}
	if created != 1 {
		t.Errorf("backend created %d times, want 1", created)
	}
	if Get() != h1 {
		t.Error("Get should return the initialised handle")
	}
	if !b.callbackSet {
		t.Error("synthesis callback was not registered")
	}
	if b.initPath != "/data" {
		t.Errorf("voice path = %q, want /data", b.initPath)
	}
	if b.outputLength != 300 {
		t.Errorf("buffer length = %d, want 300", b.outputLength)
	}
}

func TestInitialiseSelectsDefaultVoice(t *testing.T) {
	useFakeBackend(t)
	h := mustInitialise(t)

	s := h.Lock()
	defer h.Unlock()

	if got := s.CurrentVoice().Filename(); got != DefaultVoice {
		t.Errorf("current voice = %q, want %q", got, DefaultVoice)
	}
	if s.SampleRate() != 22050 {
		t.Errorf("sample rate = %d, want 22050", s.SampleRate())
	}
}

func TestInitialiseFailureCanBeRetried(t *testing.T) {
	tests := []struct {
		name          string
		breakBackend  func(b *fakeBackend)
		fixBackend    func(b *fakeBackend)
		wantTerminate int
	}{
		{
			name:         "core init",
			breakBackend: func(b *fakeBackend) { b.initErr = handleError("Initialize", StatusVersionMismatch, nil) },
			fixBackend:   func(b *fakeBackend) { b.initErr = nil },
		},
		{
			name:          "output init",
			breakBackend:  func(b *fakeBackend) { b.outputErr = handleError("InitializeOutput", StatusAudioError, nil) },
			fixBackend:    func(b *fakeBackend) { b.outputErr = nil },
			wantTerminate: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := useFakeBackend(t)
			tt.breakBackend(b)

			if _, err := Initialise(); err == nil {
				t.Fatal("expected Initialise to fail")
			}
			if Get() != nil {
				t.Error("failed Initialise should not publish a handle")
			}
			if b.terminated != tt.wantTerminate {
				t.Errorf("Terminate called %d times, want %d", b.terminated, tt.wantTerminate)
			}

			tt.fixBackend(b)
			mustInitialise(t)
		})
	}
}

func TestInitialiseUnknownVoice(t *testing.T) {
	b := useFakeBackend(t)

	_, err := Initialise(WithVoice("gmw/xx"))
	if !errors.Is(err, ErrVoiceNotFound) {
		t.Fatalf("expected ErrVoiceNotFound, got %v", err)
	}
	if b.terminated != 1 {
		t.Errorf("Terminate called %d times, want 1", b.terminated)
	}
}

func TestShutdown(t *testing.T) {
	b := useFakeBackend(t)
	h := mustInitialise(t)

	if err := Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := Shutdown(); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
	if b.terminated != 1 {
		t.Errorf("Terminate called %d times, want 1", b.terminated)
	}

	if _, err := Initialise(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Initialise after Shutdown = %v, want ErrTerminated", err)
	}

	err := h.Do(func(s *Speaker) error {
		_, err := s.Synthesize("hello")
		return err
	})
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindTerminated {
		t.Errorf("Synthesize after Shutdown = %v, want terminated error", err)
	}
}

func TestGettersAfterShutdown(t *testing.T) {
	useFakeBackend(t)
	h := mustInitialise(t)
	if err := Shutdown(); err != nil {
		t.Fatal(err)
	}

	s := h.Lock()
	defer h.Unlock()

	if v := s.CurrentVoice(); !v.Equal(Voice{}) {
		t.Errorf("CurrentVoice = %v, want zero voice", v)
	}
	if v := s.Voices(); v != nil {
		t.Errorf("Voices = %v, want nil", v)
	}
	if p := s.Parameter(Rate, false); p != 0 {
		t.Errorf("Parameter = %d, want 0", p)
	}
	if version, dataPath := s.Info(); version != "" || dataPath != "" {
		t.Errorf("Info = %q, %q, want empty", version, dataPath)
	}
}

func TestZeroSpeaker(t *testing.T) {
	var s Speaker

	if v := s.CurrentVoice(); !v.Equal(Voice{}) {
		t.Errorf("CurrentVoice = %v, want zero voice", v)
	}
	if v := s.Voices(); v != nil {
		t.Errorf("Voices = %v, want nil", v)
	}
	if version, _ := s.Info(); version != "" {
		t.Errorf("Info version = %q, want empty", version)
	}

	calls := map[string]func() error{
		"Synthesize":     func() error { _, err := s.Synthesize("hi"); return err },
		"SetVoiceRaw":    func() error { return s.SetVoiceRaw("gmw/en") },
		"SetParameter":   func() error { return s.SetParameter(Rate, 200, false) },
		"TextToPhonemes": func() error { _, err := s.TextToPhonemes("hi", Standard{}); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			if !errors.Is(err, ErrNoEngine) {
				t.Fatalf("error = %v, want ErrNoEngine", err)
			}
			var e *Error
			if !errors.As(err, &e) || e.Kind != KindMisuse {
				t.Errorf("error kind = %v, want KindMisuse", err)
			}
		})
	}
}

func TestVoices(t *testing.T) {
	b := useFakeBackend(t)
	h := mustInitialise(t)

	err := h.Do(func(s *Speaker) error {
		voices := s.Voices()
		if len(voices) != len(b.voices) {
			t.Fatalf("got %d voices, want %d", len(voices), len(b.voices))
		}
		for i := range voices {
			if !voices[i].Equal(b.voices[i]) {
				t.Errorf("voice %d = %v, want %v", i, voices[i], b.voices[i])
			}
		}

		if err := s.SetVoice(voices[2]); err != nil {
			return err
		}
		if got := s.CurrentVoice(); !got.Equal(voices[2]) {
			t.Errorf("current voice = %v, want %v", got, voices[2])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSetVoiceRawUnknown(t *testing.T) {
	useFakeBackend(t)
	h := mustInitialise(t)

	s := h.Lock()
	defer h.Unlock()

	err := s.SetVoiceRaw("gmw/nope")
	if !errors.Is(err, ErrVoiceNotFound) {
		t.Fatalf("expected ErrVoiceNotFound, got %v", err)
	}
	if got := s.CurrentVoice().Filename(); got != DefaultVoice {
		t.Errorf("failed switch changed voice to %q", got)
	}
}

func TestMbrolaVoiceSwitch(t *testing.T) {
	tests := []struct {
		name      string
		voice     string
		spurious  int
		opts      []Option
		wantKind  ErrorKind
		wantErr   bool
		wantCalls int
	}{
		{name: "first try", voice: "mb/mb-en1", opts: []Option{fastRetry}, wantCalls: 1},
		{name: "spurious failures", voice: "mb/mb-en1", spurious: 3, opts: []Option{fastRetry}, wantCalls: 4},
		{name: "retry exhausted", voice: "mb/mb-en1", spurious: 10, opts: []Option{fastRetry}, wantErr: true, wantKind: KindRetryExhausted, wantCalls: 5},
		{name: "retry disabled", voice: "mb/mb-en1", spurious: 1, opts: []Option{WithMbrolaRetry(1, 0, 0)}, wantErr: true, wantKind: KindNative, wantCalls: 1},
		{name: "voice file missing", voice: "mb/mb-us9", opts: []Option{fastRetry}, wantErr: true, wantKind: KindNative, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := useFakeBackend(t)
			h := mustInitialise(t, tt.opts...)

			s := h.Lock()
			defer h.Unlock()

			b.voiceCalls = 0
			b.spuriousMbrolaFailures = tt.spurious
			err := s.SetVoiceRaw(tt.voice)

			if b.voiceCalls != tt.wantCalls {
				t.Errorf("SetVoiceByName called %d times, want %d", b.voiceCalls, tt.wantCalls)
			}
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("SetVoiceRaw failed: %v", err)
				}
				if !s.CurrentVoice().IsMbrola() {
					t.Error("expected an mbrola voice to be active")
				}
				return
			}

			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if e.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.wantKind)
			}
			if !errors.Is(err, ErrVoiceNotFound) {
				t.Error("error should still match ErrVoiceNotFound")
			}
			if tt.wantKind == KindRetryExhausted && !errors.Is(err, ErrRetryExhausted) {
				t.Error("error should match ErrRetryExhausted")
			}
		})
	}
}

func TestParameters(t *testing.T) {
	useFakeBackend(t)
	h := mustInitialise(t)

	s := h.Lock()
	defer h.Unlock()

	if err := s.SetParameter(Volume, 50, false); err != nil {
		t.Fatal(err)
	}
	if err := s.SetParameter(Volume, 10, true); err != nil {
		t.Fatal(err)
	}
	if got := s.Parameter(Volume, false); got != 60 {
		t.Errorf("current volume = %d, want 60", got)
	}
	if got := s.Parameter(Volume, true); got != 100 {
		t.Errorf("default volume = %d, want 100", got)
	}

	if err := s.SetParameter(Rate, -25, true); err != nil {
		t.Fatal(err)
	}
	if got := s.Parameter(Rate, false); got != 150 {
		t.Errorf("rate = %d, want 150", got)
	}

	if err := s.SetParameter(Parameter(42), 1, false); err == nil {
		t.Error("expected unknown parameter to fail")
	}
}

func TestSetParameterRejectsOutOfRange(t *testing.T) {
	b := useFakeBackend(t)
	h := mustInitialise(t)

	tests := []struct {
		name  string
		param Parameter
		value int
	}{
		{"rate too fast", Rate, 5000},
		{"rate too slow", Rate, 10},
		{"negative pitch", Pitch, -1},
		{"volume over limit", Volume, 101},
		{"unknown punctuation", Punctuation, 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := b.params[tc.param]
			err := h.Do(func(s *Speaker) error {
				return s.SetParameter(tc.param, tc.value, false)
			})
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("error = %v, want ErrInvalidParameter", err)
			}
			var e *Error
			if !errors.As(err, &e) || e.Kind != KindMisuse {
				t.Errorf("error kind = %v, want KindMisuse", err)
			}
			if got := b.params[tc.param]; got != before {
				t.Errorf("engine value changed to %d", got)
			}
		})
	}

	// Relative changes are left to the engine.
	if err := h.Do(func(s *Speaker) error { return s.SetParameter(Rate, 300, true) }); err != nil {
		t.Errorf("relative change failed: %v", err)
	}
}

func TestInfo(t *testing.T) {
	b := useFakeBackend(t)
	h := mustInitialise(t)

	s := h.Lock()
	defer h.Unlock()

	version, dataPath := s.Info()
	if version != "1.52.0" {
		t.Errorf("version = %q", version)
	}
	if dataPath != b.dataPath {
		t.Errorf("data path = %q, want %q", dataPath, b.dataPath)
	}
}

func TestCurrentVoiceNullIsFatal(t *testing.T) {
	b := useFakeBackend(t)
	h := mustInitialise(t)
	msgs := captureFatal(t)

	s := h.Lock()
	defer h.Unlock()

	b.current = nil
	s.CurrentVoice()

	if len(*msgs) != 1 || !strings.Contains((*msgs)[0], "NULL") {
		t.Errorf("fatal messages = %q, want one about the NULL voice", *msgs)
	}
}

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "short", text: "Hi"},
		{name: "several chunks", text: "The quick brown fox jumps over the lazy dog"},
		{name: "empty", text: ""},
		{name: "invalid utf8", text: "\xc3\x28", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := useFakeBackend(t)
			h := mustInitialise(t)

			s := h.Lock()
			defer h.Unlock()

			got, err := s.Synthesize(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if len(b.synthesizeLog) != 0 {
					t.Error("invalid text reached the engine")
				}
				return
			}
			if err != nil {
				t.Fatalf("Synthesize failed: %v", err)
			}

			want := samplesFor(tt.text)
			if len(got) != len(want) {
				t.Fatalf("got %d samples, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
				}
			}
			if b.lastUserData == 0 {
				t.Error("synthesis should carry a buffer handle")
			}
			if _, ok := lookupBuffer(b.lastUserData); ok {
				t.Error("buffer handle should be released after synthesis")
			}
		})
	}
}

func TestSynthesizeNativeError(t *testing.T) {
	b := useFakeBackend(t)
	h := mustInitialise(t)
	b.synthErr = handleError("Synthesize", StatusFifoBufferFull, nil)

	err := h.Do(func(s *Speaker) error {
		_, err := s.Synthesize("hello")
		return err
	})
	if !errors.Is(err, StatusFifoBufferFull) {
		t.Errorf("expected fifo buffer full, got %v", err)
	}
}

func TestSynthesizeToFile(t *testing.T) {
	useFakeBackend(t)
	h := mustInitialise(t)

	s := h.Lock()
	defer h.Unlock()

	var wav bytes.Buffer
	if err := s.SynthesizeToFile(&wav, "Hello"); err != nil {
		t.Fatalf("SynthesizeToFile failed: %v", err)
	}

	format, samples, err := pcm.ReadWAV(&wav)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if format.SampleRate != 22050 || format.Channels != 1 || format.BitDepth != 16 {
		t.Errorf("unexpected format %+v", format)
	}
	if len(samples) != len(samplesFor("Hello")) {
		t.Errorf("got %d samples, want %d", len(samples), len(samplesFor("Hello")))
	}

	var raw bytes.Buffer
	if err := s.SynthesizeRawToFile(&raw, "Hello"); err != nil {
		t.Fatalf("SynthesizeRawToFile failed: %v", err)
	}
	if raw.Len() != 2*len(samplesFor("Hello")) {
		t.Errorf("raw length = %d, want %d", raw.Len(), 2*len(samplesFor("Hello")))
	}
}

func TestHandleSerialisesAccess(t *testing.T) {
	useFakeBackend(t)
	h := mustInitialise(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.Do(func(s *Speaker) error {
				samples, err := s.Synthesize("concurrent")
				if err == nil && len(samples) != len(samplesFor("concurrent")) {
					t.Errorf("got %d samples", len(samples))
				}
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Synthesize failed: %v", err)
		}
	}
}
