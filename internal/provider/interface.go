// Package provider constructs eino chat models for the "chat" completion
// backend. MODEL_PROVIDER selects the backend at runtime.
// Supported backends: Ollama, OpenAI, Azure OpenAI, Google Gemini, Volcengine Ark.
package provider

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI chat completions API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
)

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Gemini      ProviderGemini
	Ark         ProviderArk

	// Tuning holds generation defaults shared by every backend.
	Tuning SharedTuning
}

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama API endpoint (OLLAMA_HOST).
	Host string
	// Model is the model name (OLLAMA_MODEL).
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key (OPENAI_API_KEY).
	APIKey string
	// Model is the chat model name (OPENAI_MODEL).
	Model string
	// BaseURL optionally points at an OpenAI-compatible gateway (OPENAI_BASE_URL).
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the resource key (AZURE_OPENAI_API_KEY).
	APIKey string
	// Endpoint is the resource endpoint (AZURE_OPENAI_ENDPOINT).
	Endpoint string
	// Deployment is the deployment name (AZURE_OPENAI_DEPLOYMENT).
	Deployment string
	// APIVersion is the REST API version (AZURE_OPENAI_API_VERSION).
	APIVersion string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the AI Studio key (GOOGLE_API_KEY).
	APIKey string
	// Model is the Gemini model name (GEMINI_MODEL).
	Model string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey is the Ark API key (ARK_API_KEY).
	APIKey string
	// Model is the Ark endpoint/model ID (ARK_MODEL).
	Model string
	// BaseURL overrides the regional Ark endpoint (ARK_BASE_URL).
	BaseURL string
}

// SharedTuning holds generation settings applied to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}
