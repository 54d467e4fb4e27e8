// Package main hosts the transskribo CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the batch run, registry reporting,
// transcript enrichment, preflight checks, and configuration scaffolding.
// Keep this package lean: new functionality belongs in the internal packages
// first, surfaced here through dedicated commands or flags.
package main
