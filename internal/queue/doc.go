// Package queue hands synthesized utterances from the synthesis goroutine to
// the playback goroutine, bounding how far synthesis may run ahead by item
// count and by sample memory.
package queue
