package espeakng

import (
	"strings"
	"sync"
	"testing"
)

// captureFatal replaces fatal for the duration of a test.
func captureFatal(t *testing.T) *[]string {
	t.Helper()
	var msgs []string
	saved := fatal
	fatal = func(msg string) { msgs = append(msgs, msg) }
	t.Cleanup(func() { fatal = saved })
	return &msgs
}

func TestResolveUserData(t *testing.T) {
	tests := []struct {
		name   string
		events []synthEvent
		want   uintptr
	}{
		{"no events", nil, 0},
		{"terminator only", []synthEvent{{Type: eventListTerminated, UserData: 7}}, 7},
		{"first real event", []synthEvent{{Type: 1, UserData: 3}, {Type: 2, UserData: 9}, {Type: eventListTerminated, UserData: 9}}, 3},
		{"skips leading terminator", []synthEvent{{Type: eventListTerminated, UserData: 1}, {Type: 4, UserData: 5}}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveUserData(tt.events); got != tt.want {
				t.Errorf("resolveUserData() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSynthCallbackAppends(t *testing.T) {
	buf := &audioBuffer{}
	h := registerBuffer(buf)
	defer releaseBuffer(h)

	events := []synthEvent{{Type: 1, UserData: h}, {Type: eventListTerminated, UserData: h}}
	if rc := synthCallback([]int16{1, 2, 3}, events); rc != 0 {
		t.Fatalf("callback returned %d, want 0", rc)
	}
	if rc := synthCallback([]int16{4, 5}, events[1:]); rc != 0 {
		t.Fatalf("callback returned %d, want 0", rc)
	}
	// An empty buffer is a no-op.
	synthCallback(nil, events)

	got := buf.take()
	want := []int16{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("samples[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if rest := buf.take(); len(rest) != 0 {
		t.Errorf("take should drain the buffer, got %v", rest)
	}
}

func TestSynthCallbackCopiesSamples(t *testing.T) {
	buf := &audioBuffer{}
	h := registerBuffer(buf)
	defer releaseBuffer(h)

	native := []int16{10, 20}
	synthCallback(native, []synthEvent{{Type: eventListTerminated, UserData: h}})
	native[0] = 99

	if got := buf.take(); got[0] != 10 {
		t.Errorf("buffer aliases callback memory: %v", got)
	}
}

func TestSynthCallbackWithoutBuffer(t *testing.T) {
	msgs := captureFatal(t)
	if rc := synthCallback([]int16{1}, []synthEvent{{Type: 1, UserData: 0}}); rc != 0 {
		t.Errorf("callback returned %d, want 0", rc)
	}
	if len(*msgs) != 0 {
		t.Errorf("unexpected fatal: %v", *msgs)
	}
}

func TestSynthCallbackUnknownHandleIsFatal(t *testing.T) {
	msgs := captureFatal(t)
	synthCallback([]int16{1}, []synthEvent{{Type: 1, UserData: 1 << 40}})

	if len(*msgs) != 1 {
		t.Fatalf("expected one fatal call, got %d", len(*msgs))
	}
	if !strings.Contains((*msgs)[0], "unknown audio buffer") {
		t.Errorf("unexpected fatal message: %s", (*msgs)[0])
	}
}

func TestBufferRegistry(t *testing.T) {
	var wg sync.WaitGroup
	handles := make(chan uintptr, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles <- registerBuffer(&audioBuffer{})
		}()
	}
	wg.Wait()
	close(handles)

	seen := make(map[uintptr]bool)
	for h := range handles {
		if h == 0 {
			t.Error("handle 0 is reserved")
		}
		if seen[h] {
			t.Errorf("duplicate handle %d", h)
		}
		seen[h] = true
		if _, ok := lookupBuffer(h); !ok {
			t.Errorf("handle %d not found", h)
		}
		releaseBuffer(h)
		if _, ok := lookupBuffer(h); ok {
			t.Errorf("handle %d still present after release", h)
		}
	}
}
