// Package budget estimates prompt sizes against a model's context window.
// Completion backends use different tokenizers, so this package uses a
// conservative character-based heuristic: 1 token ≈ 4 characters of English
// prose.
package budget

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultContextWindow is the context size of gpt-3.5-turbo-instruct,
	// shared by the prompt and the generated answer.
	DefaultContextWindow = 4096
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// Check reports the estimated prompt size and whether prompt plus maxTokens
// of output fits in window. A non-positive window uses DefaultContextWindow.
func Check(prompt string, maxTokens, window int) (promptTokens int, fits bool) {
	if window <= 0 {
		window = DefaultContextWindow
	}
	promptTokens = Estimate(prompt)
	return promptTokens, promptTokens+maxTokens <= window
}
