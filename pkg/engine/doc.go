// Package engine implements the reflective retrieval loop that answers
// questions against indexed collections.
//
// A query runs through up to MaxIterations retrieval passes. The first
// pass decomposes the question into sub-queries; each pass embeds and
// searches its sub-queries concurrently, merges the results into a
// deduplicated evidence set, and asks the model to reflect on whether the
// evidence suffices. Reflection either terminates the loop or supplies
// follow-up queries for the next pass. The final answer is synthesized
// from the highest-scoring evidence with citations back to chunk ids.
//
// NaiveQuery skips decomposition and reflection: one retrieval pass with
// the raw question, then synthesis.
package engine
