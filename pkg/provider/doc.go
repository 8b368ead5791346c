// Package provider defines the protocol-agnostic interface for LLM inference
// backends. Each adapter implementation (e.g., openaicompat) handles its own
// backend protocol translation internally. The interface operates on Loupe's
// own types (Request, Response), keeping backend protocol details invisible
// to the engine.
package provider
