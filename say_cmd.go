package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/espeakng-go/espeakng"
	"github.com/dgnsrekt/espeakng-go/internal/audio"
	"github.com/dgnsrekt/espeakng-go/internal/queue"
	"github.com/dgnsrekt/espeakng-go/internal/sentence"
	"github.com/dgnsrekt/espeakng-go/pkg/pcm"
)

const sayMemoryLimit = 64 << 20

var (
	sayFile      string
	sayVolume    float64
	sayMarkdown  bool
	sayLookahead int
	sayNoCache   bool

	// newPlayer is replaced in tests.
	newPlayer = func(sampleRate int, volume float64) (audio.Player, error) {
		o := audio.DefaultOptions(sampleRate)
		o.Volume = volume
		p, err := audio.NewDevicePlayer(o)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	sayCmd = &cobra.Command{
		Use:   "say [TEXT...]",
		Short: "Speak text through the default audio device",
		Long: paragraph(fmt.Sprintf("\n%s text aloud. The text is split into sentences and the next sentences are "+
			"synthesized while the current one plays.", keyword("Speak"))),
		Example: paragraph("espeakng say Hello world\n" +
			"espeakng say --voice mb/mb-en1 -f poem.txt\n" +
			"espeakng say --markdown -f README.md"),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, sayFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if sayVolume < 0 || sayVolume > 1 {
				return fmt.Errorf("gain must be between 0.0 and 1.0, got %.2f", sayVolume)
			}

			sentences := sentence.NewParser(sayMarkdown).Split(text)
			if len(sentences) == 0 {
				return errors.New("nothing to say")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			err = speak(ctx, sentences, renderSamples)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
)

func init() {
	sayCmd.Flags().StringVarP(&sayFile, "file", "f", "", "read text from file, - for stdin, "+clipboardSource+" for the clipboard")
	sayCmd.Flags().Float64Var(&sayVolume, "gain", 1.0, "playback gain from 0.0 to 1.0")
	sayCmd.Flags().BoolVarP(&sayMarkdown, "markdown", "m", false, "strip markdown formatting before speaking")
	sayCmd.Flags().IntVar(&sayLookahead, "lookahead", 2, "sentences synthesized ahead of playback")
	sayCmd.Flags().BoolVar(&sayNoCache, "no-cache", false, "always synthesize, bypassing the audio cache")
}

type renderFunc func(text string) (sampleRate int, samples []int16, err error)

func renderSamples(text string) (int, []int16, error) {
	data, rate, err := renderAudio(text, true, !sayNoCache)
	if err != nil {
		return 0, nil, err
	}
	return rate, pcm.BytesToSamples(data), nil
}

// speak synthesizes sentences on one goroutine and plays them on another,
// with at most sayLookahead utterances waiting in between.
func speak(ctx context.Context, sentences []sentence.Sentence, render renderFunc) error {
	q := queue.NewAudioQueue(sayLookahead, sayMemoryLimit)

	var renderErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer q.Close()
		for _, s := range sentences {
			rate, samples, err := render(s.Text)
			if err != nil {
				renderErr = fmt.Errorf("sentence %d: %w", s.Index+1, err)
				return
			}
			u := queue.Utterance{Index: s.Index, Text: s.Text, SampleRate: rate, Samples: samples}
			if err := q.Enqueue(ctx, u); err != nil {
				return
			}
		}
	}()

	err := playQueue(ctx, q)
	if err != nil {
		q.Abort()
	}
	<-done

	stats := q.Stats()
	log.Debug("Speech finished", "sentences", stats.TotalDequeued, "peak", stats.PeakSize, "dropped", stats.TotalDropped)

	if err != nil {
		return err
	}
	return renderErr
}

// playQueue plays utterances until the queue is closed and drained. The
// device is opened at the sample rate of the first utterance.
func playQueue(ctx context.Context, q *queue.AudioQueue) error {
	var p audio.Player
	defer func() {
		if p != nil {
			p.Close()
		}
	}()

	for {
		u, err := q.Dequeue(ctx)
		if errors.Is(err, queue.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if p == nil {
			dev, err := newPlayer(u.SampleRate, sayVolume)
			if err != nil {
				return fmt.Errorf("unable to open audio device: %w", err)
			}
			p = dev
		}

		log.Debug("Speaking", "sentence", u.Index+1, "samples", len(u.Samples),
			"estimate", sentence.EstimateDuration(u.Text, wordsPerMinute()))
		if err := p.Play(ctx, u.Samples); err != nil {
			return err
		}
	}
}

func wordsPerMinute() int {
	if cfg == nil {
		return 0
	}
	return cfg.Parameters[espeakng.Rate.String()]
}
