package cmd

import (
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/bugboard/internal/api"
	"github.com/joescharf/bugboard/internal/llm"
)

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

// newTriager returns the configured LLM as an api.Triager, or an untyped nil.
func newTriager() api.Triager {
	if c := newLLMClient(); c != nil {
		return c
	}
	return nil
}
