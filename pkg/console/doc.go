// Package console implements the interactive terminal client for a
// running loupe server.
//
// The Bubble Tea model drives a textinput for questions, a viewport for
// the answer with its citations and iteration trace, and a spinner while
// a query is in flight. Queries run as asynchronous commands so the UI
// stays responsive during multi-iteration retrieval.
package console
