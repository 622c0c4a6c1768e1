// Package pipeline runs the sitesift stages (crawl, clean, filter,
// translate) in order over one State.
//
// Each stage is a Step that reads State.Result and replaces it with its own
// output. The crawl step fans seeds out over a BatchProcessor built on
// errgroup; the other stages are single-threaded. Execute keeps the latest
// result in the State even when a step fails or the run is cancelled, so
// the caller can always flush it.
package pipeline
