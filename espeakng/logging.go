package espeakng

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Metrics records one synthesis pass.
type Metrics struct {
	Voice             string
	TextLength        int
	SynthesisStart    time.Time
	SynthesisDuration time.Duration
	Samples           int
	ErrorOccurred     bool
	ErrorMessage      string
}

var metrics = struct {
	sync.Mutex
	enabled bool
	logger  *log.Logger
	history []Metrics
}{}

// EnableMetrics turns synthesis metrics on or off. logger may be nil to use
// the default charmbracelet logger.
func EnableMetrics(enabled bool, logger *log.Logger) {
	metrics.Lock()
	defer metrics.Unlock()
	metrics.enabled = enabled
	metrics.logger = logger
	if !enabled {
		metrics.history = nil
	}
}

// startSynthesis starts tracking a synthesis pass.
func startSynthesis(voice, text string) *Metrics {
	m := &Metrics{
		Voice:          voice,
		TextLength:     len(text),
		SynthesisStart: time.Now(),
	}
	if l := metricsLogger(); l != nil {
		l.Debug("Synthesis started", "voice", voice, "textLength", m.TextLength)
	}
	return m
}

// end completes m. samples is 0 for trace-only passes.
func (m *Metrics) end(samples int, err error) {
	m.SynthesisDuration = time.Since(m.SynthesisStart)
	m.Samples = samples
	if err != nil {
		m.ErrorOccurred = true
		m.ErrorMessage = err.Error()
	}

	metrics.Lock()
	enabled := metrics.enabled
	if enabled {
		metrics.history = append(metrics.history, *m)
	}
	metrics.Unlock()

	l := metricsLogger()
	if l == nil {
		return
	}
	if m.ErrorOccurred {
		l.Error("Synthesis failed",
			"voice", m.Voice,
			"duration", m.SynthesisDuration,
			"error", m.ErrorMessage)
		return
	}
	l.Info("Synthesis completed",
		"voice", m.Voice,
		"textLength", m.TextLength,
		"samples", m.Samples,
		"duration", m.SynthesisDuration)
}

func metricsLogger() *log.Logger {
	metrics.Lock()
	defer metrics.Unlock()
	if !metrics.enabled {
		return nil
	}
	if metrics.logger == nil {
		return log.Default()
	}
	return metrics.logger
}

// SynthesisStats summarises the passes recorded since metrics were enabled.
func SynthesisStats() string {
	metrics.Lock()
	defer metrics.Unlock()

	if len(metrics.history) == 0 {
		return "No synthesis metrics available"
	}

	var total time.Duration
	var samples, errors int
	for _, m := range metrics.history {
		total += m.SynthesisDuration
		samples += m.Samples
		if m.ErrorOccurred {
			errors++
		}
	}

	return fmt.Sprintf(
		"Synthesis Stats:\n"+
			"  Total: %d\n"+
			"  Avg Duration: %v\n"+
			"  Total Samples: %d\n"+
			"  Errors: %d",
		len(metrics.history),
		total/time.Duration(len(metrics.history)),
		samples,
		errors,
	)
}
