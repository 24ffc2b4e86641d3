package espeakng

// Backend is the native engine driven by a Speaker. Every method is called
// with the Speaker lock held, so implementations need no locking of their own.
type Backend interface {
	// SetSynthCallback routes native audio callbacks into this package.
	SetSynthCallback()
	// InitializePath sets the espeak-ng data directory; "" selects the default.
	InitializePath(path string)
	Initialize() error
	// InitializeOutput selects synchronous output with bufferLength
	// milliseconds of audio per callback (0 = engine default).
	InitializeOutput(bufferLength int) error
	SampleRate() int

	SetVoiceByName(name string) error
	// CurrentVoice returns false when the native current voice pointer is NULL.
	CurrentVoice() (Voice, bool)
	ListVoices() []Voice

	Parameter(p Parameter, current bool) int
	SetParameter(p Parameter, value int, relative bool) error

	// Info copies the version string and data directory out of native memory.
	Info() (version, dataPath string)

	// Synthesize queues text with userData attached to every callback event.
	Synthesize(text string, userData uintptr) error
	// Synchronize blocks until every callback for queued text has returned.
	Synchronize() error

	// TextToPhonemes returns one entry per clause, advancing the native
	// cursor until it is exhausted.
	TextToPhonemes(text string, textMode TextMode, phonemeMode PhonemeMode) []string

	// OpenTrace wraps fd in a native stream. Closing the stream closes fd.
	OpenTrace(fd int) (TraceStream, error)
	// SetPhonemeTrace redirects the mbrola phoneme trace to stream, or back
	// to stdout when stream is nil.
	SetPhonemeTrace(stream TraceStream)

	Terminate() error
}

// TraceStream is a native FILE opened on a descriptor.
type TraceStream interface {
	// Rewind flushes pending writes and seeks to the start.
	Rewind() error
	Close() error
}
