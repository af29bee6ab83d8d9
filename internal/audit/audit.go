// Package audit provides a structured audit logger for CLI command invocations.
// It logs the command name, where configuration came from, and the sanitised
// environment so operators can trace what happened without exposing secrets.
//
// Secrets are logged as presence/absence only, never their values.
// Connection URLs are logged with their password redacted.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// redaction selects how a value is rendered in the audit log.
type redaction int

const (
	plain  redaction = iota // value as-is
	secret                  // "set" / "unset"
	dsn                     // URL with the password replaced by "xxxxx"
)

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	key  string
	mode redaction
}

// auditKeys is the ordered list of env vars included in every audit log entry.
var auditKeys = []auditEntry{
	{"COMPLETION_PROVIDER", plain},
	{"COMPLETION_MODEL", plain},
	{"COMPLETION_BASE_URL", plain},
	{"OPENAI_API_KEY", secret},
	{"MODEL_PROVIDER", plain},
	{"OLLAMA_HOST", plain},
	{"OLLAMA_MODEL", plain},
	{"OPENAI_MODEL", plain},
	{"AZURE_OPENAI_API_KEY", secret},
	{"AZURE_OPENAI_ENDPOINT", plain},
	{"AZURE_OPENAI_DEPLOYMENT", plain},
	{"GOOGLE_API_KEY", secret},
	{"GEMINI_MODEL", plain},
	{"ARK_API_KEY", secret},
	{"ARK_MODEL", plain},
	{"EMBEDDING_PROVIDER", plain},
	{"EMBEDDING_MODEL", plain},
	{"EMBEDDING_DIMENSIONS", plain},
	{"EMBEDDING_API_KEY", secret},
	{"FINDER_THRESHOLD", plain},
	{"FINDER_LIMIT", plain},
	{"SEARCH_BACKEND", plain},
	{"CATALOG_BACKEND", plain},
	{"SHOWFINDER_CATALOG_DB", plain},
	{"DATABASE_URL", dsn},
	{"QDRANT_HOST", plain},
	{"QDRANT_PORT", plain},
	{"QDRANT_COLLECTION", plain},
	{"QDRANT_API_KEY", secret},
	{"SHOWFINDER_API_KEY", secret},
	{"LOG_LEVEL", plain},
	{"LOG_FORMAT", plain},
	{"LANGFUSE_PUBLIC_KEY", secret},
	{"LANGFUSE_SECRET_KEY", secret},
}

// modes indexes auditKeys by key.
var modes = func() map[string]redaction {
	m := make(map[string]redaction, len(auditKeys))
	for _, e := range auditKeys {
		m[e.key] = e.mode
	}
	return m
}()

// LogCommandStart emits a structured audit log entry when a CLI command
// begins. dotenvFiles lists the dotenv files that were loaded, if any.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string, dotenvFiles []string) {
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", commandAttrs(command, configPath, dotenvFiles)...)
}

// commandAttrs builds the attributes of an audit entry.
func commandAttrs(command, configPath string, dotenvFiles []string) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(auditKeys)+3)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
		slog.Int("dotenv_files", len(dotenvFiles)),
	)
	for _, e := range auditKeys {
		attrs = append(attrs, slog.String(e.key, render(e.mode, os.Getenv(e.key))))
	}
	return attrs
}

// SanitiseKey returns a log-safe rendering of value for the env var key.
// Unknown keys are treated as plain values.
func SanitiseKey(key, value string) string {
	return render(modes[key], value)
}

// render applies mode to v.
func render(mode redaction, v string) string {
	switch mode {
	case secret:
		return presence(v)
	case dsn:
		return redactURL(v)
	default:
		return valOrUnset(v)
	}
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// redactURL masks the password of a connection URL. Values that do not
// parse as URLs are reduced to presence only.
func redactURL(v string) string {
	if v == "" {
		return "unset"
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" {
		return "set"
	}
	return u.Redacted()
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	// Redact home directory for privacy in logs.
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
