// Package backoff holds the retry policy shared by the crawler and the
// translation stage.
//
// A Policy is plain data (base delay, multiplier, cap, jitter). The crawler
// uses Retry for a bounded number of throttled fetches; the translator asks
// for an unbounded sequence with New and sleeps through it itself, so it can
// honour Retry-After and flush its checkpoint when interrupted.
package backoff
