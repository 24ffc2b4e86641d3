package espeakng

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// eventListTerminated is espeakEVENT_LIST_TERMINATED.
const eventListTerminated = 0

// synthEvent is the part of an espeak_EVENT the callback needs.
type synthEvent struct {
	Type     int
	UserData uintptr
}

// audioBuffer collects samples for one synthesis call. Only the call that
// created it and the in-flight callback ever touch it.
type audioBuffer struct {
	mu      sync.Mutex
	samples []int16
}

func (b *audioBuffer) append(s []int16) {
	b.mu.Lock()
	b.samples = append(b.samples, s...)
	b.mu.Unlock()
}

func (b *audioBuffer) take() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.samples
	b.samples = nil
	return s
}

// buffers hands out stable integer handles for audio buffers so no Go
// pointer crosses into native memory as user data. Handle 0 means "no buffer".
var buffers = struct {
	sync.Mutex
	next uintptr
	m    map[uintptr]*audioBuffer
}{m: make(map[uintptr]*audioBuffer)}

func registerBuffer(b *audioBuffer) uintptr {
	buffers.Lock()
	defer buffers.Unlock()
	buffers.next++
	h := buffers.next
	buffers.m[h] = b
	return h
}

func releaseBuffer(h uintptr) {
	buffers.Lock()
	delete(buffers.m, h)
	buffers.Unlock()
}

func lookupBuffer(h uintptr) (*audioBuffer, bool) {
	buffers.Lock()
	defer buffers.Unlock()
	b, ok := buffers.m[h]
	return b, ok
}

// resolveUserData finds the user data for a callback: the first
// non-terminator event carries it. An event list holding only the
// terminator still has the user data stamped on that terminator.
func resolveUserData(events []synthEvent) uintptr {
	for _, e := range events {
		if e.Type != eventListTerminated {
			return e.UserData
		}
	}
	if n := len(events); n > 0 {
		return events[n-1].UserData
	}
	return 0
}

// synthCallback is the Go half of the native synthesis callback. samples may
// alias native memory and are copied before returning. It never panics
// back into native code.
func synthCallback(samples []int16, events []synthEvent) int {
	defer recoverCallback()

	if len(samples) == 0 {
		return 0
	}

	h := resolveUserData(events)
	if h == 0 {
		return 0
	}

	buf, ok := lookupBuffer(h)
	if !ok {
		panic(fmt.Sprintf("synthesis callback for unknown audio buffer %d", h))
	}
	buf.append(samples)
	return 0
}

func recoverCallback() {
	if r := recover(); r != nil {
		fatal(fmt.Sprintf("panic during native synthesis callback: %v\n%s", r, debug.Stack()))
	}
}

// fatal ends the process for conditions that leave native state untrustworthy.
var fatal = func(msg string) {
	log.Error("unrecoverable espeak-ng state", "reason", msg)
	fmt.Fprintln(os.Stderr, msg)
	_ = unix.Kill(unix.Getpid(), unix.SIGABRT)
	os.Exit(134)
}
