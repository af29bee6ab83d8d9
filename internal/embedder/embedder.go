// Package embedder provides implementations of the rag.Embedder interface for
// converting show descriptions and user queries into dense vectors.
//
// Backends:
//
//   - OpenAI / Azure OpenAI via github.com/sashabaranov/go-openai
//   - Ollama via its plain /api/embed REST endpoint
//
// Every backend trims its inputs, issues exactly one request per Embed call,
// and returns one vector per input in input order. Non-success responses are
// reported as *apperr.UpstreamError; nothing is retried.
package embedder

import (
	"fmt"
	"strings"
)

// prepare returns a trimmed copy of texts, rejecting an empty batch.
func prepare(texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedder: at least one input text is required")
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.TrimSpace(t)
	}
	return out, nil
}
