package api

import (
	"fmt"
	"strings"
)

// Limits holds configurable bounds for query validation.
type Limits struct {
	MaxQuestionLength int
	MaxIterationsCap  int
	TopKCap           int
}

// DefaultLimits returns a Limits with sensible defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxQuestionLength: 8 * 1024,
		MaxIterationsCap:  10,
		TopKCap:           100,
	}
}

// ValidateQueryRequest checks a QueryRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request is valid.
func ValidateQueryRequest(req *QueryRequest, lim Limits) *APIError {
	if strings.TrimSpace(req.Question) == "" {
		return NewInvalidRequestError("question", "question is required")
	}

	if lim.MaxQuestionLength > 0 && len(req.Question) > lim.MaxQuestionLength {
		return NewInvalidRequestError("question",
			fmt.Sprintf("question exceeds maximum of %d bytes", lim.MaxQuestionLength))
	}

	if req.MaxIterations != nil {
		if *req.MaxIterations < 1 {
			return NewInvalidRequestError("max_iterations", "max_iterations must be at least 1")
		}
		if lim.MaxIterationsCap > 0 && *req.MaxIterations > lim.MaxIterationsCap {
			return NewInvalidRequestError("max_iterations",
				fmt.Sprintf("max_iterations exceeds maximum of %d", lim.MaxIterationsCap))
		}
	}

	if req.TopK != nil {
		if *req.TopK < 1 {
			return NewInvalidRequestError("top_k", "top_k must be at least 1")
		}
		if lim.TopKCap > 0 && *req.TopK > lim.TopKCap {
			return NewInvalidRequestError("top_k",
				fmt.Sprintf("top_k exceeds maximum of %d", lim.TopKCap))
		}
	}

	return nil
}

// NormalizeSubQuery returns the canonical form of a sub-query used for
// deduplication: lowercased, leading/trailing whitespace removed, interior
// runs of whitespace collapsed to single spaces.
func NormalizeSubQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeCollectionName maps a human collection name onto the identifier
// accepted by vector store backends: spaces and hyphens become underscores.
func NormalizeCollectionName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
