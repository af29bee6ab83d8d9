package provider

import (
	"fmt"
	"strings"

	"github.com/54b3r/showfinder-go/internal/apperr"
)

// Validate checks that the credentials and model name required by the
// selected backend are present. It never touches the network. Missing values
// are reported as *apperr.ConfigError naming the env var to set.
func (c *Config) Validate() error {
	var missing []string
	require := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}

	switch c.Backend {
	case BackendOllama:
		require("OLLAMA_MODEL", c.Ollama.Model)
	case BackendOpenAI:
		require("OPENAI_API_KEY", c.OpenAI.APIKey)
		require("OPENAI_MODEL", c.OpenAI.Model)
	case BackendAzure:
		require("AZURE_OPENAI_API_KEY", c.AzureOpenAI.APIKey)
		require("AZURE_OPENAI_ENDPOINT", c.AzureOpenAI.Endpoint)
		require("AZURE_OPENAI_DEPLOYMENT", c.AzureOpenAI.Deployment)
	case BackendGemini:
		require("GOOGLE_API_KEY", c.Gemini.APIKey)
		require("GEMINI_MODEL", c.Gemini.Model)
	case BackendArk:
		require("ARK_API_KEY", c.Ark.APIKey)
		require("ARK_MODEL", c.Ark.Model)
	default:
		return &apperr.ConfigError{
			Key:    "MODEL_PROVIDER",
			Reason: fmt.Sprintf("unknown backend %q, valid values: ollama, openai, azure, gemini, ark", c.Backend),
		}
	}

	if len(missing) == 0 {
		return nil
	}
	return &apperr.ConfigError{
		Key:    missing[0],
		Reason: fmt.Sprintf("required for %s backend (missing: %s)", c.Backend, strings.Join(missing, ", ")),
	}
}

// isAzureReasoningModel reports whether an Azure deployment name refers to an
// o-series or codex reasoning model. Those deployments reject temperature and
// max_tokens, so the factory leaves both unset for them.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
