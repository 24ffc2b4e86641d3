package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/espeakng-go/espeakng"
	"github.com/dgnsrekt/espeakng-go/internal/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show engine version, data path and settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSpeaker(func(s *espeakng.Speaker) error {
			return writeInfo(cmd.OutOrStdout(), s)
		})
	},
}

func writeInfo(w io.Writer, s *espeakng.Speaker) error {
	version, dataPath := s.Info()

	var b strings.Builder
	row := func(k, v string) { fmt.Fprintf(&b, "  %-14s %s\n", k, v) }

	b.WriteString(header("espeak-ng") + "\n")
	row("version", version)
	row("data path", dataPath)
	row("sample rate", humanize.SIWithDigits(float64(s.SampleRate()), 2, "Hz"))
	row("voice", s.CurrentVoice().Filename())
	row("voices", humanize.Comma(int64(len(s.Voices()))))

	b.WriteString("\n" + header("parameters") + " " + faint("(current / default)") + "\n")
	for _, p := range espeakng.Parameters() {
		row(p.String(), fmt.Sprintf("%d / %d", s.Parameter(p, false), s.Parameter(p, true)))
	}

	b.WriteString("\n" + header("files") + "\n")
	if used := viper.ConfigFileUsed(); used != "" {
		row("config", used)
	} else {
		row("config", faint("none"))
	}
	if f, err := config.LogFile(); err == nil {
		row("log", f)
	}
	if stats, err := cacheStats(); err == nil {
		row("cache", stats)
	} else {
		row("cache", faint(err.Error()))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
