package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/espeakng-go/espeakng"
	"github.com/dgnsrekt/espeakng-go/internal/sentence"
	"github.com/dgnsrekt/espeakng-go/pkg/pcm"
)

var (
	synthOutput   string
	synthFile     string
	synthRaw      bool
	synthNoCache  bool
	synthMarkdown bool

	synthCmd = &cobra.Command{
		Use:   "synth [TEXT...]",
		Short: "Synthesize text to a WAV file",
		Long: paragraph(fmt.Sprintf("\n%s text to 16-bit mono audio. Output is a WAV file unless --raw is given, "+
			"in which case headerless little-endian samples are written.", keyword("Synthesize"))),
		Example: paragraph("espeakng synth -o hello.wav Hello world\n" +
			"espeakng synth --voice gmw/de -f text.txt -o out.wav\n" +
			"echo hello | espeakng synth --raw - > hello.pcm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, synthFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if synthMarkdown {
				text = sentence.NewParser(true).Text(text)
			}

			data, rate, err := renderAudio(text, synthRaw, !synthNoCache)
			if err != nil {
				return err
			}

			if err := writeOutput(synthOutput, cmd.OutOrStdout(), data); err != nil {
				return err
			}
			if synthOutput != "-" {
				format := pcm.DefaultFormat(rate)
				samples := len(data) / pcm.BytesPerSample
				if !synthRaw {
					samples = (len(data) - pcm.HeaderSize) / pcm.BytesPerSample
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s of audio (%s) to %s\n",
					pcm.Duration(samples, format).Round(10*time.Millisecond), humanize.Bytes(uint64(len(data))), synthOutput)
			}
			return nil
		},
	}
)

func init() {
	synthCmd.Flags().StringVarP(&synthOutput, "output", "o", "-", "output file, - for stdout")
	synthCmd.Flags().StringVarP(&synthFile, "file", "f", "", "read text from file, - for stdin, "+clipboardSource+" for the clipboard")
	synthCmd.Flags().BoolVar(&synthRaw, "raw", false, "write raw samples without a WAV header")
	synthCmd.Flags().BoolVarP(&synthMarkdown, "markdown", "m", false, "strip markdown formatting before synthesis")
	synthCmd.Flags().BoolVar(&synthNoCache, "no-cache", false, "always synthesize, bypassing the audio cache")
}

// renderAudio synthesizes text as WAV or raw samples, consulting the cache.
func renderAudio(text string, raw, useCache bool) (data []byte, sampleRate int, err error) {
	format := "wav"
	if raw {
		format = "raw"
	}

	err = withSpeaker(func(s *espeakng.Speaker) error {
		sampleRate = s.SampleRate()
		data, err = cachedRender(cacheKey(s, text, format), useCache, func() ([]byte, error) {
			var buf bytes.Buffer
			var err error
			if raw {
				err = s.SynthesizeRawToFile(&buf, text)
			} else {
				err = s.SynthesizeToFile(&buf, text)
			}
			return buf.Bytes(), err
		})
		return err
	})
	return data, sampleRate, err
}

var errTerminalOutput = errors.New("refusing to write audio to a terminal: use -o FILE or redirect stdout")

// writeOutput writes data to path, or to stdout when path is "-". Files are
// replaced atomically so watchers never see a partial file.
func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "-" {
		if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return errTerminalOutput
		}
		_, err := stdout.Write(data)
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write output file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		log.Debug("Could not set output file mode", "error", err)
	}
	return os.Rename(tmp.Name(), path)
}
