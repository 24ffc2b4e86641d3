//go:build cgo && !nocgo

package espeakng

/*
#include <espeak-ng/speak_lib.h>
*/
import "C"

import "unsafe"

// maxCallbackEvents bounds the scan of a native event list.
const maxCallbackEvents = 1 << 16

//export espeakngSynthCallback
func espeakngSynthCallback(wav *C.short, numsamples C.int, events *C.espeak_EVENT) C.int {
	defer recoverCallback()

	if wav == nil || numsamples <= 0 {
		return 0
	}
	samples := unsafe.Slice((*int16)(unsafe.Pointer(wav)), int(numsamples))
	return C.int(synthCallback(samples, nativeEvents(events)))
}

// nativeEvents copies an event list up to and including its terminator.
func nativeEvents(events *C.espeak_EVENT) []synthEvent {
	if events == nil {
		return nil
	}
	var out []synthEvent
	size := unsafe.Sizeof(*events)
	for i := uintptr(0); i < maxCallbackEvents; i++ {
		e := (*C.espeak_EVENT)(unsafe.Add(unsafe.Pointer(events), i*size))
		out = append(out, synthEvent{Type: int(e._type), UserData: uintptr(e.user_data)})
		if e._type == C.espeakEVENT_LIST_TERMINATED {
			break
		}
	}
	return out
}
