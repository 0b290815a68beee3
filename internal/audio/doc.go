// Package audio plays 16-bit PCM clips through the system audio device
// using oto/v3, one clip at a time, and reports when each clip has been
// heard in full.
package audio
