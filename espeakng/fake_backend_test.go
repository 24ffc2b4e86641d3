package espeakng

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeBackend stands in for libespeak-ng. It drives synthCallback the way
// the native engine does: chunked audio followed by a terminator-only call.
type fakeBackend struct {
	voices     []Voice
	current    *Voice
	dataPath   string
	sampleRate int
	chunk      int

	defaults map[Parameter]int
	params   map[Parameter]int

	trace       *fakeTrace
	rawTrace    []byte // written instead of generated lines when set
	traceResets int

	// spuriousMbrolaFailures makes the next N mbrola voice switches fail.
	spuriousMbrolaFailures int
	voiceCalls             int

	initErr       error
	outputErr     error
	synthErr      error
	terminated    int
	callbackSet   bool
	initPath      string
	outputLength  int
	lastUserData  uintptr
	synthesizeLog []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	dataPath := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dataPath, "voices", "mb"), 0o755); err != nil {
		t.Fatalf("create voices dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataPath, "voices", "mb", "mb-en1"), []byte("name en1\n"), 0o644); err != nil {
		t.Fatalf("create mbrola voice: %v", err)
	}

	defaults := map[Parameter]int{
		Rate: 175, Volume: 100, Pitch: 50, Range: 50,
		Punctuation: 0, Capitals: 0, Wordgap: 0,
	}
	params := make(map[Parameter]int, len(defaults))
	for k, v := range defaults {
		params[k] = v
	}

	return &fakeBackend{
		voices: []Voice{
			newVoice("English", "gmw/en", []byte{2, 'e', 'n', 0, 0}, 1, 0),
			newVoice("English (America)", "gmw/en-US", []byte{2, 'e', 'n', '-', 'u', 's', 0, 3, 'e', 'n', 0, 0}, 1, 0),
			newVoice("German", "gmw/de", []byte{5, 'd', 'e', 0, 0}, 2, 0),
			newVoice("en1", "mb/mb-en1", []byte{5, 'e', 'n', 0, 0}, 1, 0),
			newVoice("us9", "mb/mb-us9", []byte{5, 'e', 'n', '-', 'u', 's', 0, 0}, 2, 0),
		},
		dataPath:   dataPath,
		sampleRate: 22050,
		chunk:      64,
		defaults:   defaults,
		params:     params,
	}
}

func (b *fakeBackend) SetSynthCallback()          { b.callbackSet = true }
func (b *fakeBackend) InitializePath(path string) { b.initPath = path }
func (b *fakeBackend) Initialize() error          { return b.initErr }
func (b *fakeBackend) SampleRate() int            { return b.sampleRate }
func (b *fakeBackend) ListVoices() []Voice        { return append([]Voice(nil), b.voices...) }
func (b *fakeBackend) Info() (string, string)     { return "1.52.0", b.dataPath }
func (b *fakeBackend) Synchronize() error         { return nil }

func (b *fakeBackend) Terminate() error {
	b.terminated++
	return nil
}

func (b *fakeBackend) InitializeOutput(bufferLength int) error {
	b.outputLength = bufferLength
	return b.outputErr
}

func (b *fakeBackend) SetVoiceByName(name string) error {
	b.voiceCalls++
	if isMbrolaVoice(name) && b.spuriousMbrolaFailures > 0 {
		b.spuriousMbrolaFailures--
		return handleError("SetVoiceByName", StatusVoiceNotFound, nil)
	}
	for i := range b.voices {
		if b.voices[i].Filename() == name {
			v := b.voices[i]
			b.current = &v
			return nil
		}
	}
	return handleError("SetVoiceByName", StatusVoiceNotFound, nil)
}

func (b *fakeBackend) CurrentVoice() (Voice, bool) {
	if b.current == nil {
		return Voice{}, false
	}
	return *b.current, true
}

func (b *fakeBackend) Parameter(p Parameter, current bool) int {
	if current {
		return b.params[p]
	}
	return b.defaults[p]
}

func (b *fakeBackend) SetParameter(p Parameter, value int, relative bool) error {
	if _, ok := b.defaults[p]; !ok {
		return handleError("SetParameter", 0x10FFFFFF, nil)
	}
	if relative {
		value += b.params[p]
	}
	b.params[p] = value
	return nil
}

// samplesFor is deterministic so tests can compare whole outputs.
func samplesFor(text string) []int16 {
	out := make([]int16, len(text)*10)
	for i := range out {
		out[i] = int16(int(text[i/10]) * (i%10 - 5))
	}
	return out
}

func (b *fakeBackend) Synthesize(text string, userData uintptr) error {
	b.synthesizeLog = append(b.synthesizeLog, text)
	b.lastUserData = userData
	if b.synthErr != nil {
		return b.synthErr
	}

	if b.trace != nil {
		if b.rawTrace != nil {
			b.trace.f.Write(b.rawTrace)
		} else {
			for _, w := range strings.Fields(text) {
				fmt.Fprintf(b.trace.f, "%s\t%d\n", strings.ToLower(w), 10*len(w))
			}
			fmt.Fprintf(b.trace.f, "_\t100\n")
		}
	}

	samples := samplesFor(text)
	events := []synthEvent{
		{Type: 1, UserData: userData},
		{Type: eventListTerminated, UserData: userData},
	}
	for len(samples) > 0 {
		n := min(b.chunk, len(samples))
		synthCallback(samples[:n], events)
		samples = samples[n:]
	}
	// The engine ends with an empty buffer carrying only the terminator.
	synthCallback(nil, events[1:])
	return nil
}

func (b *fakeBackend) TextToPhonemes(text string, _ TextMode, mode PhonemeMode) []string {
	sep := " "
	if mode.Has(SeparateWithUnderscores) {
		sep = "_"
	}
	var clauses []string
	for _, clause := range strings.Split(text, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		clauses = append(clauses, strings.Join(strings.Fields(strings.ToLower(clause)), sep))
	}
	return clauses
}

type fakeTrace struct {
	f      *os.File
	closed bool
}

func (t *fakeTrace) Rewind() error {
	_, err := t.f.Seek(0, 0)
	return err
}

func (t *fakeTrace) Close() error {
	t.closed = true
	return t.f.Close()
}

func (b *fakeBackend) OpenTrace(fd int) (TraceStream, error) {
	return &fakeTrace{f: os.NewFile(uintptr(fd), "trace")}, nil
}

func (b *fakeBackend) SetPhonemeTrace(stream TraceStream) {
	if stream == nil {
		b.trace = nil
		b.traceResets++
		return
	}
	b.trace = stream.(*fakeTrace)
}

// useFakeBackend resets the process-wide engine slot to a fresh fake.
func useFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := newFakeBackend(t)

	slotMu.Lock()
	oldBackend := newBackend
	slot = nil
	terminated = false
	newBackend = func() (Backend, error) { return b, nil }
	slotMu.Unlock()

	t.Cleanup(func() {
		slotMu.Lock()
		slot = nil
		terminated = false
		newBackend = oldBackend
		slotMu.Unlock()
	})
	return b
}

// fastRetry keeps mbrola retry tests quick.
var fastRetry = WithMbrolaRetry(5, 0, 0)

func mustInitialise(t *testing.T, opts ...Option) *Handle {
	t.Helper()
	h, err := Initialise(opts...)
	if err != nil {
		t.Fatalf("Initialise failed: %v", err)
	}
	return h
}
