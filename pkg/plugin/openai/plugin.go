package openai

import (
	"fmt"
	"os"

	"github.com/chriscow/voicemart/pkg/plugin"
)

func newOpenAITTS(cfg map[string]any) (any, error) {
	config := Config{}

	if apiKey, ok := cfg["api_key"].(string); ok && apiKey != "" {
		config.APIKey = apiKey
	} else {
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
	}

	if model, ok := cfg["model"].(string); ok {
		config.Model = model
	}
	if voice, ok := cfg["voice"].(string); ok {
		config.Voice = voice
	}
	if baseURL, ok := cfg["base_url"].(string); ok {
		config.BaseURL = baseURL
	}

	return NewTTS(config)
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "openai",
		Factory:     newOpenAITTS,
		Description: "OpenAI text-to-speech service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":    string(defaultModel),
			"voice":    string(defaultVoice),
			"base_url": "override the API endpoint",
		},
	})
}
