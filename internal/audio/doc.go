// Package audio plays synthesized 16-bit mono samples through the system
// audio device using oto/v3.
package audio
