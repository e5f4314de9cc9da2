// Package statsview serves the runtime statistics of the simulator over
// HTTP, when built with the statsview build tag.
//
// After launch, the graphs are at:
//
//	localhost:12600/debug/statsview
//
// And the standard Go pprof endpoints at:
//
//	localhost:12600/debug/pprof/
package statsview
