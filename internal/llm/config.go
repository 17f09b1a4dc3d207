// Package llm wraps the Gemini generative API used by the LLM relevance judge.
package llm

import "github.com/google/generative-ai-go/genai"

// DefaultModel is a small, fast model suited to short scoring prompts.
const DefaultModel = "gemini-2.5-flash-lite"

// Config configures one Gemini model.
type Config struct {
	Model       string
	Temperature float32
	// MaxOutputTokens caps answer length. Zero leaves the model default.
	MaxOutputTokens int32
	// Schema constrains JSON answers when set.
	Schema *genai.Schema
}

// DefaultConfig returns a deterministic configuration for DefaultModel.
func DefaultConfig() Config {
	return Config{Model: DefaultModel, MaxOutputTokens: 512}
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	return c
}
