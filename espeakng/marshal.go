package espeakng

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// parseLanguages decodes espeak-ng's packed language list: repeated
// (priority byte, NUL-terminated name) pairs ending at a zero priority byte.
// buf is a copy of the native bytes; scanning stops at the sentinel or at the
// end of buf, whichever comes first.
func parseLanguages(buf []byte) []Language {
	var langs []Language
	for i := 0; i < len(buf) && buf[i] != 0; {
		priority := int8(buf[i])
		i++

		end := bytes.IndexByte(buf[i:], 0)
		if end < 0 {
			langs = append(langs, Language{Name: lossyString(buf[i:]), Priority: priority})
			break
		}
		langs = append(langs, Language{Name: lossyString(buf[i : i+end]), Priority: priority})
		i += end + 1
	}
	return langs
}

// lossyString converts native bytes to a string, replacing invalid UTF-8.
func lossyString(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// checkText rejects text that cannot be handed to the engine as UTF-8.
func checkText(text string) error {
	if _, _, err := transform.String(encoding.UTF8Validator, text); err != nil {
		return &Error{Kind: KindMisuse, Op: "Synthesize", Err: ErrInvalidText}
	}
	if strings.IndexByte(text, 0) >= 0 {
		return &Error{Kind: KindMisuse, Op: "Synthesize", Err: ErrInvalidText}
	}
	return nil
}
