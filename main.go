// Package main provides the entry point for the espeakng CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/espeakng-go/espeakng"
	"github.com/dgnsrekt/espeakng-go/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool

	// defaultConfigFile is where `espeakng config` creates a file when none
	// was found. Kept apart from configFile, which the --config flag owns.
	defaultConfigFile string
	paramFlags = map[espeakng.Parameter]*int{}

	// cfg is the effective configuration, loaded before every command.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "espeakng",
		Short: "Speak, synthesize and transcribe text with espeak-ng",
		Long: paragraph(
			fmt.Sprintf("\nDrive the %s speech engine from the command line.", keyword("espeak-ng")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	if cfg.Debug || debug {
		log.SetLevel(log.DebugLevel)
		espeakng.EnableMetrics(true, nil)
	}
	return nil
}

// applyFlags gives explicitly set flags precedence over the config file and
// the environment.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("voice") {
		c.Voice, _ = flags.GetString("voice")
	}
	if flags.Changed("data-path") {
		p, _ := flags.GetString("data-path")
		var err error
		if c.DataPath, err = config.ExpandPath(p); err != nil {
			return err
		}
	}

	if c.Parameters == nil {
		c.Parameters = map[string]int{}
	}
	for p, v := range paramFlags {
		if !flags.Changed(p.String()) {
			continue
		}
		if err := p.Validate(*v); err != nil {
			return err
		}
		c.Parameters[p.String()] = *v
	}
	return nil
}

// withSpeaker runs fn with the engine locked and configured.
func withSpeaker(fn func(s *espeakng.Speaker) error) error {
	h, err := espeakng.Initialise(cfg.SpeakerOptions()...)
	if err != nil {
		return fmt.Errorf("unable to start espeak-ng: %w", err)
	}

	settings, err := cfg.ParameterSettings()
	if err != nil {
		return err
	}

	return h.Do(func(s *espeakng.Speaker) error {
		for _, st := range settings {
			if err := s.SetParameter(st.Parameter, st.Value, false); err != nil {
				return fmt.Errorf("unable to set %s: %w", st.Parameter, err)
			}
		}
		return fn(s)
	})
}

// clipboardSource passed as --file reads the text from the system clipboard.
const clipboardSource = "@clipboard"

// readClipboard is replaced in tests.
var readClipboard = clipboard.ReadAll

// readText joins args, or reads from file, stdin or the clipboard when asked to.
func readText(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file == clipboardSource:
		text, err := readClipboard()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return "", errors.New("clipboard is empty")
		}
		return text, nil
	case file != "":
		var b []byte
		var err error
		if file == "-" {
			b, err = io.ReadAll(stdin)
		} else {
			b, err = os.ReadFile(file)
		}
		if err != nil {
			return "", fmt.Errorf("unable to read text: %w", err)
		}
		return string(b), nil
	case len(args) == 1 && args[0] == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", errors.New("no text given: pass it as arguments, with --file, or as - for stdin")
	}
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	code := 0
	if err := rootCmd.Execute(); err != nil {
		code = 1
	}

	if espeakng.Get() != nil {
		log.Debug(espeakng.SynthesisStats())
		if err := espeakng.Shutdown(); err != nil {
			log.Error("Failed to terminate espeak-ng", "error", err)
		}
	}
	_ = closer()
	os.Exit(code)
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	defaultPath := viper.GetViper().ConfigFileUsed()
	if defaultPath == "" {
		defaultPath = defaultConfigFile
	}
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", defaultPath))
	flags.String("voice", espeakng.DefaultVoice, "voice identifier, e.g. gmw/en-US or mb/mb-en1")
	flags.String("data-path", "", "espeak-ng data directory")
	flags.BoolVar(&debug, "debug", false, "log debug output and synthesis metrics")
	for _, p := range espeakng.Parameters() {
		lo, hi := p.Limits()
		paramFlags[p] = flags.Int(p.String(), 0, fmt.Sprintf("%s (%d-%d)", p, lo, hi))
	}

	// Config bindings
	_ = viper.BindPFlag("voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("data_path", flags.Lookup("data-path"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))

	viper.SetDefault("voice", espeakng.DefaultVoice)

	rootCmd.AddCommand(
		voicesCmd, infoCmd, synthCmd, sayCmd, phonemesCmd, watchCmd,
		cacheCmd, configCmd, manCmd,
	)
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := config.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	defaultConfigFile = filepath.Join(dirs[0], config.AppName+".yml")
}
