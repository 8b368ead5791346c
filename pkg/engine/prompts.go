package engine

import (
	"fmt"
	"strings"
)

// decomposePrompt asks the model to break the question into retrieval
// sub-questions, returned as a JSON array of strings.
func decomposePrompt(question string, maxSubQueries int) string {
	return fmt.Sprintf(`To answer this question more comprehensively, please break down the original question into up to %d sub-questions. Return a JSON array of strings.
If this is a very simple question and no decomposition is necessary, then keep the only one original question in the array.

Original Question: %s

<EXAMPLE>
Example input:
"Explain deep learning"

Example output:
[
    "What is deep learning?",
    "What is the difference between deep learning and machine learning?",
    "What is the history of deep learning?"
]
</EXAMPLE>

Provide your response as a JSON array of strings:
`, maxSubQueries, question)
}

// reflectPrompt asks the model whether the gathered evidence answers the
// original question, and for follow-up queries if not. The response is a
// strict JSON object.
func reflectPrompt(question string, subQueries []string, chunks []string, maxFollowUps int) string {
	return fmt.Sprintf(`Determine whether the retrieved document chunks are sufficient to answer the original query, based on the original query, the previous sub-queries, and the chunks below. If further research is required, name the knowledge gap and provide up to %d new search queries that close it. Do not repeat queries that have already been asked.

Original Query: %s
Previous Sub Queries: %s
Related Chunks:
%s
Respond with exactly one JSON object of the form {"is_sufficient": <bool>, "knowledge_gap": "<string>", "follow_up_queries": ["<string>", ...]} and no other text.`,
		maxFollowUps, question, joinQueries(subQueries), chunkSections(chunks))
}

// synthesizePrompt asks the model for the final answer, citing chunks by
// their bracketed number.
func synthesizePrompt(question string, subQueries []string, chunks []string) string {
	return fmt.Sprintf(`You are an AI content analysis expert, good at summarizing content. Please summarize a specific and detailed answer based on the original query, the previous sub-queries, and the retrieved document chunks.
Cite the chunks that support your statements with their bracketed number, for example [2]. Only cite chunks that are listed below. If the chunks do not contain the information needed to answer, say so instead of guessing.

Original Query: %s
Previous Sub Queries: %s
Related Chunks:
%s`, question, joinQueries(subQueries), chunkSections(chunks))
}

// routePrompt asks the model which collections are relevant to the
// question, returned as a JSON array of collection names.
func routePrompt(question string, collectionInfo string) string {
	return fmt.Sprintf(`I provide you with collection_name(s) and corresponding collection_description(s). Please select the collection names that may be related to the question and return a JSON array of strings. If there is no collection related to the question, you can return an empty array.

"QUESTION": %s
"COLLECTION_INFO": %s

When you return, you can ONLY return a JSON array of strings, WITHOUT any other additional content. Your selected collection name list is:
`, question, collectionInfo)
}

// rerankPrompt asks the model which of the numbered chunks help answer any
// of the query questions, returned as a JSON array of chunk numbers.
func rerankPrompt(queries []string, chunks []string) string {
	return fmt.Sprintf(`Based on the query questions and the retrieved chunks, determine which chunks are helpful in answering any of the query questions. Return a JSON array with the numbers of the helpful chunks, for example [1, 3]. If none of the chunks are helpful, return an empty array.

Query Questions: %s
Retrieved Chunks:
%s
Respond exclusively with the JSON array, without any other text.`,
		strings.Join(queries, ", "), chunkSections(chunks))
}

// chunkSections renders texts as numbered <chunk_n> sections, 1-based to
// match the citation instructions.
func chunkSections(texts []string) string {
	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "<chunk_%d>\n%s\n</chunk_%d>\n", i+1, t, i+1)
	}
	return b.String()
}

func joinQueries(queries []string) string {
	if len(queries) == 0 {
		return "(none)"
	}
	return strings.Join(queries, "; ")
}
