// Package tracing wires Langfuse tracing into the eino callback system, so
// every chat-model completion made through the "chat" provider is traced.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/showfinder-go/internal/version"
)

// DefaultHost is the Langfuse API host used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// ConfigFromEnv builds the Langfuse handler config from LANGFUSE_HOST,
// LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY. ok is false when either key
// is missing, in which case tracing stays disabled.
func ConfigFromEnv() (cfg *langfuse.Config, ok bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, false
	}
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = DefaultHost
	}
	return &langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
		Name:      "showfinder",
		Release:   version.Version,
	}, true
}

// Setup registers a global Langfuse callback handler when Langfuse is
// configured. The returned flush function must be called before process
// exit so buffered traces are sent; it is a no-op when tracing is disabled.
func Setup() (flush func(), enabled bool) {
	cfg, ok := ConfigFromEnv()
	if !ok {
		return func() {}, false
	}
	handler, flusher := langfuse.NewLangfuseHandler(cfg)
	callbacks.AppendGlobalHandlers(handler)
	return flusher, true
}
