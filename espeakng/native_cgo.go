//go:build cgo && !nocgo

package espeakng

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <stdint.h>
#include <espeak-ng/espeak_ng.h>
#include <espeak-ng/speak_lib.h>

extern int espeakngSynthCallback(short *wav, int numsamples, espeak_EVENT *events);

static void register_synth_callback(void)
{
	espeak_SetSynthCallback(espeakngSynthCallback);
}

static espeak_ng_STATUS synthesize_utf8(const char *text, size_t size, uintptr_t user_data)
{
	return espeak_ng_Synthesize(text, size, 0, POS_CHARACTER, 0, espeakCHARS_UTF8, NULL, (void *)user_data);
}

// languages_len returns the length of a packed language list including the
// terminating zero priority byte.
static size_t languages_len(const char *p)
{
	const char *start = p;
	if (p == NULL)
	{ return 0; }

	while (*p != 0)
	{
		p++;
		p += strlen(p) + 1;
	}
	return (size_t)(p - start) + 1;
}

static const espeak_VOICE *voice_at(const espeak_VOICE **voices, size_t i)
{
	return voices[i];
}
*/
import "C"

import (
	"unsafe"

	"github.com/charmbracelet/log"
)

func init() {
	formatStatus = nativeStatusMessage
}

func defaultBackend() (Backend, error) {
	return nativeBackend{}, nil
}

func nativeStatusMessage(c StatusCode) string {
	var buf [statusMessageLen]C.char
	C.espeak_ng_GetStatusCodeMessage(C.espeak_ng_STATUS(c), &buf[0], C.size_t(len(buf)))
	return C.GoString(&buf[0])
}

// nativeBackend calls libespeak-ng directly. The engine state is global, so
// the type carries no fields.
type nativeBackend struct{}

func (nativeBackend) SetSynthCallback() {
	C.register_synth_callback()
}

func (nativeBackend) InitializePath(path string) {
	if path == "" {
		C.espeak_ng_InitializePath(nil)
		return
	}
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	C.espeak_ng_InitializePath(cpath)
}

func (nativeBackend) Initialize() error {
	status, errno := C.espeak_ng_Initialize(nil)
	return handleError("Initialize", StatusCode(status), errno)
}

func (nativeBackend) InitializeOutput(bufferLength int) error {
	status, errno := C.espeak_ng_InitializeOutput(C.ENOUTPUT_MODE_SYNCHRONOUS, C.int(bufferLength), nil)
	return handleError("InitializeOutput", StatusCode(status), errno)
}

func (nativeBackend) SampleRate() int {
	return int(C.espeak_ng_GetSampleRate())
}

func (nativeBackend) SetVoiceByName(name string) error {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	status, errno := C.espeak_ng_SetVoiceByName(cname)
	return handleError("SetVoiceByName", StatusCode(status), errno)
}

func (nativeBackend) CurrentVoice() (Voice, bool) {
	v := C.espeak_GetCurrentVoice()
	if v == nil {
		return Voice{}, false
	}
	return voiceFromNative(v), true
}

func (nativeBackend) ListVoices() []Voice {
	list := C.espeak_ListVoices(nil)
	if list == nil {
		return nil
	}

	var voices []Voice
	for i := C.size_t(0); ; i++ {
		v := C.voice_at(list, i)
		if v == nil {
			return voices
		}
		voices = append(voices, voiceFromNative(v))
	}
}

// voiceFromNative copies every field out of native memory.
func voiceFromNative(v *C.espeak_VOICE) Voice {
	var languages []byte
	if n := C.languages_len(v.languages); n > 0 {
		languages = C.GoBytes(unsafe.Pointer(v.languages), C.int(n))
	}
	return newVoice(
		goString(v.name),
		goString(v.identifier),
		languages,
		uint8(v.gender),
		uint8(v.age),
	)
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return lossyString([]byte(C.GoString(s)))
}

func (nativeBackend) Parameter(p Parameter, current bool) int {
	cur := C.int(0)
	if current {
		cur = 1
	}
	return int(C.espeak_GetParameter(C.espeak_PARAMETER(p), cur))
}

func (nativeBackend) SetParameter(p Parameter, value int, relative bool) error {
	rel := C.int(0)
	if relative {
		rel = 1
	}
	status, errno := C.espeak_ng_SetParameter(C.espeak_PARAMETER(p), C.int(value), rel)
	return handleError("SetParameter", StatusCode(status), errno)
}

func (nativeBackend) Info() (string, string) {
	var path *C.char
	version := C.espeak_Info(&path)
	return goString(version), goString(path)
}

func (nativeBackend) Synthesize(text string, userData uintptr) error {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	// The size includes the terminating NUL.
	status, errno := C.synthesize_utf8(ctext, C.size_t(len(text)+1), C.uintptr_t(userData))
	return handleError("Synthesize", StatusCode(status), errno)
}

func (nativeBackend) Synchronize() error {
	status, errno := C.espeak_ng_Synchronize()
	return handleError("Synchronize", StatusCode(status), errno)
}

func (nativeBackend) TextToPhonemes(text string, textMode TextMode, phonemeMode PhonemeMode) []string {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	var clauses []string
	cursor := unsafe.Pointer(ctext)
	for cursor != nil {
		out := C.espeak_TextToPhonemes(&cursor, C.int(textMode), C.int(phonemeMode))
		if out == nil {
			break
		}
		clauses = append(clauses, goString(out))
	}
	return clauses
}

type nativeTrace struct {
	fp *C.FILE
}

func (nativeBackend) OpenTrace(fd int) (TraceStream, error) {
	mode := C.CString("w+")
	defer C.free(unsafe.Pointer(mode))

	fp, errno := C.fdopen(C.int(fd), mode)
	if fp == nil {
		return nil, errnoError("fdopen", errno)
	}
	return &nativeTrace{fp: fp}, nil
}

func (t *nativeTrace) Rewind() error {
	if rc, errno := C.fseek(t.fp, 0, C.SEEK_SET); rc != 0 {
		return errnoError("fseek", errno)
	}
	return nil
}

func (t *nativeTrace) Close() error {
	if t.fp == nil {
		return nil
	}
	rc, errno := C.fclose(t.fp)
	t.fp = nil
	if rc != 0 {
		return errnoError("fclose", errno)
	}
	return nil
}

func (nativeBackend) SetPhonemeTrace(stream TraceStream) {
	if stream == nil {
		C.espeak_SetPhonemeTrace(0, nil)
		return
	}
	t, ok := stream.(*nativeTrace)
	if !ok {
		log.Error("Phoneme trace stream is not a native stream", "type", stream)
		return
	}
	C.espeak_SetPhonemeTrace(C.espeakPHONEMES_MBROLA, t.fp)
}

func (nativeBackend) Terminate() error {
	status, errno := C.espeak_ng_Terminate()
	return handleError("Terminate", StatusCode(status), errno)
}
