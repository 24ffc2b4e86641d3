package espeakng

import (
	"fmt"
	"math"
	"strings"
)

// Gender of a voice as reported by espeak-ng.
type Gender uint8

const (
	// GenderUnknown covers unset and unrecognised values.
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

// parseGender never fails: anything other than 1 or 2 is GenderUnknown.
func parseGender(b uint8) Gender {
	switch b {
	case 1:
		return GenderMale
	case 2:
		return GenderFemale
	default:
		return GenderUnknown
	}
}

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

// Language is one entry of a voice's language list. Lower priority values
// are preferred.
type Language struct {
	Name     string
	Priority int8
}

// Voice describes an installed espeak-ng voice. Values are only built from
// native data and are never modified afterwards.
type Voice struct {
	name      string
	filename  string
	languages []Language
	gender    Gender
	age       uint8
}

// Name is the human readable voice name.
func (v Voice) Name() string { return v.name }

// Filename is the identifier accepted by Speaker.SetVoiceRaw, e.g. "gmw/en".
func (v Voice) Filename() string { return v.filename }

// Languages returns a copy of the voice's languages in native order.
func (v Voice) Languages() []Language {
	out := make([]Language, len(v.languages))
	copy(out, v.languages)
	return out
}

// Gender of the voice, GenderUnknown when unset.
func (v Voice) Gender() Gender { return v.gender }

// Age of the voice, 0 when unset.
func (v Voice) Age() uint8 { return v.age }

// IsMbrola reports whether the voice belongs to the mbrola diphone family.
func (v Voice) IsMbrola() bool { return isMbrolaVoice(v.filename) }

// Equal compares two voices field by field.
func (v Voice) Equal(o Voice) bool {
	if v.name != o.name || v.filename != o.filename || v.gender != o.gender || v.age != o.age {
		return false
	}
	if len(v.languages) != len(o.languages) {
		return false
	}
	for i := range v.languages {
		if v.languages[i] != o.languages[i] {
			return false
		}
	}
	return true
}

func (v Voice) String() string {
	langs := make([]string, 0, len(v.languages))
	for _, l := range v.languages {
		langs = append(langs, fmt.Sprintf("%s(%d)", l.Name, l.Priority))
	}
	return fmt.Sprintf("%s [%s] %s %s age=%d", v.filename, v.name, strings.Join(langs, ","), v.gender, v.age)
}

// newVoice builds a Voice from fields already copied out of native memory.
// languages is the raw packed language list including its terminator.
func newVoice(name, filename string, languages []byte, gender, age uint8) Voice {
	return Voice{
		name:      name,
		filename:  filename,
		languages: parseLanguages(languages),
		gender:    parseGender(gender),
		age:       age,
	}
}

// mbrolaPrefix marks voices of the mbrola diphone family.
const mbrolaPrefix = "mb/"

func isMbrolaVoice(filename string) bool {
	return strings.HasPrefix(filename, mbrolaPrefix)
}

// Parameter is a synthesis setting, numbered as in espeak_PARAMETER.
type Parameter uint32

const (
	// Rate in words per minute, 80-450.
	Rate Parameter = iota + 1
	// Volume 0-100. Larger values may distort.
	Volume
	// Pitch, base 50, 0-100.
	Pitch
	// Range of pitch, 0 is monotone and 50 normal.
	Range
	// Punctuation characters to speak, see PunctuationType.
	Punctuation
	// Capitals announcement: 0 none, 1 sound icon, 2 spelling, 3+ pitch raise in Hz.
	Capitals
	// Wordgap between words in units of 10ms at the default rate.
	Wordgap
)

var parameterNames = map[Parameter]string{
	Rate:        "rate",
	Volume:      "volume",
	Pitch:       "pitch",
	Range:       "range",
	Punctuation: "punctuation",
	Capitals:    "capitals",
	Wordgap:     "wordgap",
}

// Parameters lists every parameter in native order.
func Parameters() []Parameter {
	return []Parameter{Rate, Volume, Pitch, Range, Punctuation, Capitals, Wordgap}
}

func (p Parameter) String() string {
	if n, ok := parameterNames[p]; ok {
		return n
	}
	return fmt.Sprintf("parameter(%d)", uint32(p))
}

// ParseParameter looks a parameter up by its String name.
func ParseParameter(name string) (Parameter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range parameterNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter %q", name)
}

// Limits returns the documented legal range of absolute values for p.
func (p Parameter) Limits() (lo, hi int) {
	switch p {
	case Rate:
		return 80, 450
	case Volume, Pitch, Range:
		return 0, 100
	case Punctuation:
		return int(PunctuationNone), int(PunctuationSome)
	default:
		return 0, math.MaxInt32
	}
}

// Validate checks an absolute value against Limits.
func (p Parameter) Validate(value int) error {
	if _, ok := parameterNames[p]; !ok {
		return fmt.Errorf("%w: unknown parameter %d", ErrInvalidParameter, uint32(p))
	}
	lo, hi := p.Limits()
	if value < lo || value > hi {
		return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidParameter, p, lo, hi, value)
	}
	return nil
}

// PunctuationType is the value domain of the Punctuation parameter.
type PunctuationType int

const (
	PunctuationNone PunctuationType = iota
	PunctuationAll
	PunctuationSome
)

// TextMode is the character encoding of text handed to TextToPhonemes.
type TextMode int

// TextModeUTF8 is the only encoding this package produces.
const TextModeUTF8 TextMode = 1

// PhonemeMode flags shape standard phoneme output.
type PhonemeMode uint32

const (
	// IncludeTies adds U+0361 ties inside multi-letter phoneme names.
	IncludeTies PhonemeMode = 1 << iota
	// IncludeZeroWidthJoiners adds zero-width joiners inside multi-letter phoneme names.
	IncludeZeroWidthJoiners
	// SeparateWithUnderscores separates phonemes with underscores.
	SeparateWithUnderscores
)

// Has reports whether all bits of f are set.
func (m PhonemeMode) Has(f PhonemeMode) bool { return m&f == f }

// PhonemeGenOptions selects how Speaker.TextToPhonemes extracts phonemes.
// It is one of Standard, Mbrola or MbrolaFile.
type PhonemeGenOptions interface {
	phonemeStrategy() string
}

// Standard asks the engine for its own phoneme notation.
type Standard struct {
	TextMode    TextMode
	PhonemeMode PhonemeMode
}

// Mbrola runs a synthesis pass with the mbrola phoneme trace captured in memory.
type Mbrola struct{}

// Fder is satisfied by *os.File.
type Fder interface {
	Fd() uintptr
}

// MbrolaFile runs a synthesis pass with the mbrola phoneme trace written to
// File. The caller keeps ownership of the descriptor.
type MbrolaFile struct {
	File Fder
}

func (Standard) phonemeStrategy() string   { return "standard" }
func (Mbrola) phonemeStrategy() string     { return "mbrola" }
func (MbrolaFile) phonemeStrategy() string { return "mbrola-file" }
