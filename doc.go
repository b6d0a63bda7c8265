// Package docdex builds, serves, and exports a two-tier semantic index over
// a fixed document corpus.
//
// Documents are split twice: into large parent chunks (the context unit
// handed to an answering step) and, per parent, into small child chunks
// (the search unit). Only children are embedded and vector-searched; every
// child carries a back-reference to its parent, so a similarity hit on a
// child resolves to the parent's full content.
//
// The root package defines the domain types and the contracts between
// components: ParentStore, ChildIndex, Embedder, and the Retriever read
// path. Implementations live in subpackages: split (chunking strategies),
// store/fskv and store/sqlite (storage adapters), ingest (the rebuild
// write path), export (the portable snapshot), and embed/gemini (the
// embedding provider).
package docdex
