// Package espeakng is a safe wrapper around the libespeak-ng speech engine.
//
// libespeak-ng keeps all of its state in process globals and is not
// reentrant, so the package exposes exactly one Speaker per process. It is
// created by Initialise and reached through the returned Handle, which must
// be locked for every call:
//
//	h, err := espeakng.Initialise()
//	if err != nil {
//		return err
//	}
//	err = h.Do(func(s *espeakng.Speaker) error {
//		samples, err := s.Synthesize("Hello world")
//		...
//	})
//
// Audio is returned as 16-bit mono samples at Speaker.SampleRate. Phonemes
// can be produced in espeak-ng's standard notation or, with an mbrola voice
// selected, as the mbrola trace the engine writes during synthesis.
//
// Builds without cgo (or with the nocgo tag) compile but every Initialise
// fails with ErrNativeUnavailable.
package espeakng
