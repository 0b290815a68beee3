// Package loop runs narration work on a single logical thread.
// Loop drains a FIFO of closures on one goroutine; Manual does the same
// under a virtual clock so tests can step through timers deterministically.
package loop
