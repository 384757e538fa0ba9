// Package audio reads, cleans, joins and plays voice recordings. WAV files
// are decoded into mono float clips, processed in memory and written back
// as 16-bit PCM. Playback uses oto/v3.
package audio
