package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/espeakng-go/internal/sentence"
)

var (
	watchOutput   string
	watchRaw      bool
	watchDebounce time.Duration
	watchMarkdown bool

	watchCmd = &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-synthesize a text file whenever it changes",
		Long: paragraph(fmt.Sprintf("\n%s a text file and write fresh audio to the output file every time it is saved. "+
			"Rapid successive saves are collapsed into one render.", keyword("Watch"))),
		Example: paragraph("espeakng watch notes.txt -o notes.wav"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			out := watchOutput
			if out == "" {
				out = trimExt(src) + ".wav"
				if watchRaw {
					out = trimExt(src) + ".pcm"
				}
			}
			if out == "-" {
				return errors.New("watch needs an output file")
			}

			render := func() error {
				text, err := readText(nil, src, nil)
				if err != nil {
					return err
				}
				if watchMarkdown {
					text = sentence.NewParser(true).Text(text)
				}
				data, _, err := renderAudio(text, watchRaw, true)
				if err != nil {
					return err
				}
				if err := writeOutput(out, nil, data); err != nil {
					return err
				}
				log.Info("Rendered", "source", src, "output", out)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s, press ctrl+c to stop\n", src)
			if err := watchFile(ctx, src, watchDebounce, render); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
)

func init() {
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "output file (default: FILE with a .wav extension)")
	watchCmd.Flags().BoolVar(&watchRaw, "raw", false, "write raw samples without a WAV header")
	watchCmd.Flags().BoolVarP(&watchMarkdown, "markdown", "m", false, "strip markdown formatting before synthesis")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 250*time.Millisecond, "minimum time between renders")
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}

// watchFile calls onChange once immediately and then after every write to
// path, at most once per debounce interval. Editors that save by renaming a
// new file into place are handled by watching the parent directory.
// Render errors are logged and do not stop the watch.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("unable to watch %s: %w", filepath.Dir(abs), err)
	}

	limiter := rate.NewLimiter(rate.Every(debounce), 1)
	run := func() {
		if err := onChange(); err != nil {
			log.Error("Render failed", "file", path, "error", err)
		}
	}

	_ = limiter.Allow()
	run()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher error", "error", err)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			log.Debug("File changed", "file", ev.Name, "op", ev.Op)

			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			drain(w.Events, abs)
			run()
		}
	}
}

// drain discards events for abs that queued up while waiting.
func drain(events <-chan fsnotify.Event, abs string) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != abs {
				log.Debug("Ignoring event", "file", ev.Name)
			}
		default:
			return
		}
	}
}
