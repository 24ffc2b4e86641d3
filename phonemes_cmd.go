package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/espeakng-go/espeakng"
)

var (
	phonemesFile        string
	phonemesOutput      string
	phonemesMbrola      bool
	phonemesTies        bool
	phonemesZWJ         bool
	phonemesUnderscores bool

	phonemesCmd = &cobra.Command{
		Use:   "phonemes [TEXT...]",
		Short: "Transcribe text to phonemes",
		Long: paragraph(fmt.Sprintf("\nPrint espeak-ng's %s of text. With --mbrola the current voice must be an "+
			"mbrola voice and the output is the mbrola .pho trace of a synthesis pass.", keyword("phoneme transcription"))),
		Example: paragraph("espeakng phonemes Hello world\n" +
			"espeakng phonemes --ties --underscores Hello\n" +
			"espeakng phonemes --voice mb/mb-en1 --mbrola -o hello.pho Hello"),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, phonemesFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if phonemesMbrola && (phonemesTies || phonemesZWJ || phonemesUnderscores) {
				return fmt.Errorf("--ties, --zwj and --underscores only apply to standard phonemes")
			}

			return withSpeaker(func(s *espeakng.Speaker) error {
				if phonemesMbrola && phonemesOutput != "-" {
					return mbrolaToFile(s, text, phonemesOutput)
				}

				out, err := s.TextToPhonemes(text, phonemeOptions())
				if err != nil {
					return err
				}
				if !strings.HasSuffix(out, "\n") {
					out += "\n"
				}
				if phonemesOutput == "-" {
					_, err = fmt.Fprint(cmd.OutOrStdout(), out)
					return err
				}
				return writeOutput(phonemesOutput, nil, []byte(out))
			})
		},
	}
)

func init() {
	phonemesCmd.Flags().StringVarP(&phonemesFile, "file", "f", "", "read text from file, - for stdin, "+clipboardSource+" for the clipboard")
	phonemesCmd.Flags().StringVarP(&phonemesOutput, "output", "o", "-", "output file, - for stdout")
	phonemesCmd.Flags().BoolVar(&phonemesMbrola, "mbrola", false, "produce the mbrola phoneme trace")
	phonemesCmd.Flags().BoolVar(&phonemesTies, "ties", false, "join multi-letter phonemes with U+0361 ties")
	phonemesCmd.Flags().BoolVar(&phonemesZWJ, "zwj", false, "join multi-letter phonemes with zero-width joiners")
	phonemesCmd.Flags().BoolVar(&phonemesUnderscores, "underscores", false, "separate phonemes with underscores")
}

func phonemeOptions() espeakng.PhonemeGenOptions {
	if phonemesMbrola {
		return espeakng.Mbrola{}
	}
	var mode espeakng.PhonemeMode
	if phonemesTies {
		mode |= espeakng.IncludeTies
	}
	if phonemesZWJ {
		mode |= espeakng.IncludeZeroWidthJoiners
	}
	if phonemesUnderscores {
		mode |= espeakng.SeparateWithUnderscores
	}
	return espeakng.Standard{TextMode: espeakng.TextModeUTF8, PhonemeMode: mode}
}

// mbrolaToFile lets the engine write the trace straight into path.
func mbrolaToFile(s *espeakng.Speaker, text, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	if _, err := s.TextToPhonemes(text, espeakng.MbrolaFile{File: f}); err != nil {
		return err
	}
	return f.Close()
}
