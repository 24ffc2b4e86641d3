package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/espeakng-go/espeakng"
)

var (
	voicesLang   string
	voicesMbrola bool

	voicesCmd = &cobra.Command{
		Use:     "voices",
		Short:   "List installed voices",
		Example: paragraph("espeakng voices\nespeakng voices --lang en\nespeakng voices --mbrola"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSpeaker(func(s *espeakng.Speaker) error {
				voices := filterVoices(s.Voices(), voicesLang, voicesMbrola)
				if len(voices) == 0 {
					return fmt.Errorf("no voices match %q", voicesLang)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), voiceTable(voices))
				return err
			})
		},
	}
)

func init() {
	voicesCmd.Flags().StringVarP(&voicesLang, "lang", "l", "", "only voices speaking this language (prefix match)")
	voicesCmd.Flags().BoolVar(&voicesMbrola, "mbrola", false, "only mbrola voices")
}

// filterVoices keeps voices with a language starting with lang, in order.
func filterVoices(voices []espeakng.Voice, lang string, mbrolaOnly bool) []espeakng.Voice {
	lang = strings.ToLower(lang)
	var out []espeakng.Voice
	for _, v := range voices {
		if mbrolaOnly && !v.IsMbrola() {
			continue
		}
		if lang == "" || speaks(v, lang) {
			out = append(out, v)
		}
	}
	return out
}

func speaks(v espeakng.Voice, lang string) bool {
	for _, l := range v.Languages() {
		if strings.HasPrefix(strings.ToLower(l.Name), lang) {
			return true
		}
	}
	return false
}

func voiceTable(voices []espeakng.Voice) string {
	rows := make([][]string, 0, len(voices))
	for _, v := range voices {
		langs := make([]string, 0, len(v.Languages()))
		for _, l := range v.Languages() {
			langs = append(langs, fmt.Sprintf("%s (%d)", l.Name, l.Priority))
		}
		age := "-"
		if v.Age() > 0 {
			age = strconv.Itoa(int(v.Age()))
		}
		rows = append(rows, []string{v.Filename(), v.Name(), strings.Join(langs, ", "), v.Gender().String(), age})
	}

	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("IDENTIFIER", "NAME", "LANGUAGES", "GENDER", "AGE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).PaddingRight(1)
			}
			return lipgloss.NewStyle().PaddingRight(1)
		}).
		Rows(rows...).
		Render()
}
