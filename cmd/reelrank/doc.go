// Package main hosts the reelrank CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, builds the TMDB catalog
// searcher and the cinema feed client, and hands them to the reconcile
// pipeline. Subcommands only choose inputs and render output; matching,
// registration, and ranking live in the internal packages.
package main
