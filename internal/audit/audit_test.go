package audit

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"OPENAI_API_KEY", "", "unset"},
		{"SHOWFINDER_API_KEY", "token", "set"},
		{"COMPLETION_PROVIDER", "openai", "openai"},
		{"COMPLETION_PROVIDER", "", "unset"},
		{"DATABASE_URL", "postgres://show:hunter2@db:5432/showfinder", "postgres://show:xxxxx@db:5432/showfinder"},
		{"DATABASE_URL", "postgres://db/showfinder", "postgres://db/showfinder"},
		{"DATABASE_URL", "host=db password=hunter2", "set"},
		{"DATABASE_URL", "", "unset"},
		{"SOMETHING_ELSE", "value", "value"},
	}
	for _, tc := range tests {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestLogCommandStart_NeverLogsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("LANGFUSE_SECRET_KEY", "lf-very-secret")
	t.Setenv("DATABASE_URL", "postgres://show:hunter2@db/showfinder")
	t.Setenv("SEARCH_BACKEND", "qdrant")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(t.Context(), log, "serve", "", []string{".env.local"})

	out := buf.String()
	for _, leaked := range []string{"sk-very-secret", "lf-very-secret", "hunter2"} {
		if strings.Contains(out, leaked) {
			t.Errorf("audit line leaked %q: %s", leaked, out)
		}
	}
	for _, want := range []string{`"command":"serve"`, `"config_file":"none"`, `"dotenv_files":1`, `"SEARCH_BACKEND":"qdrant"`, `"OPENAI_API_KEY":"set"`} {
		if !strings.Contains(out, want) {
			t.Errorf("audit line missing %s: %s", want, out)
		}
	}
}

func TestAuditKeys_Unique(t *testing.T) {
	t.Parallel()

	if len(modes) != len(auditKeys) {
		t.Errorf("auditKeys has %d entries but %d unique keys", len(auditKeys), len(modes))
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.showfinder/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.showfinder/config.yaml" {
			t.Errorf("expected '~/.showfinder/config.yaml', got %q", got)
		}
	}
}
