package engine

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Completion output is parsed liberally: models wrap JSON in reasoning
// blocks, Markdown fences, or prose, so parsing strips those layers and
// falls back to extracting the outermost JSON value before giving up.

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	jsonArrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// stripThink removes <think>...</think> reasoning blocks.
func stripThink(s string) string {
	return thinkBlockRe.ReplaceAllString(s, "")
}

// cleanCompletion strips reasoning blocks and unwraps a Markdown code
// fence when the completion is nothing but the fenced block.
func cleanCompletion(s string) string {
	s = strings.TrimSpace(stripThink(s))
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(s)
}

// parseStringArray extracts a JSON array of strings from a completion.
func parseStringArray(s string) ([]string, error) {
	s = cleanCompletion(s)
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}
	if m := jsonArrayRe.FindString(s); m != "" {
		if err := json.Unmarshal([]byte(m), &out); err == nil {
			return out, nil
		}
	}
	return nil, errors.New("completion contains no JSON array of strings")
}

// parseIndexArray extracts a JSON array of integers from a completion.
func parseIndexArray(s string) ([]int, error) {
	s = cleanCompletion(s)
	var out []int
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}
	if m := jsonArrayRe.FindString(s); m != "" {
		if err := json.Unmarshal([]byte(m), &out); err == nil {
			return out, nil
		}
	}
	return nil, errors.New("completion contains no JSON array of numbers")
}

// reflectionResult is the JSON object the reflection prompt asks for.
type reflectionResult struct {
	IsSufficient    bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// parseReflection extracts the reflection object from a completion.
func parseReflection(s string) (reflectionResult, error) {
	s = cleanCompletion(s)
	var out reflectionResult
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}
	if m := jsonObjectRe.FindString(s); m != "" {
		if err := json.Unmarshal([]byte(m), &out); err == nil {
			return out, nil
		}
	}
	return reflectionResult{}, errors.New("completion contains no reflection JSON object")
}
