package completion

import (
	"context"
	"testing"

	"github.com/54b3r/showfinder-go/internal/apperr"
)

func TestNewFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantName   string
		wantConfig bool // Validate returns ConfigError
		wantErr    bool // construction fails
	}{
		{
			name:     "default openai",
			env:      map[string]string{"COMPLETION_PROVIDER": "", "OPENAI_API_KEY": "sk-test", "COMPLETION_MODEL": ""},
			wantName: "openai/gpt-3.5-turbo-instruct",
		},
		{
			name:       "openai without key",
			env:        map[string]string{"COMPLETION_PROVIDER": "openai", "OPENAI_API_KEY": "", "COMPLETION_MODEL": "babbage-002"},
			wantName:   "openai/babbage-002",
			wantConfig: true,
		},
		{
			name: "chat without credentials",
			env: map[string]string{
				"COMPLETION_PROVIDER": "chat", "MODEL_PROVIDER": "gemini",
				"GOOGLE_API_KEY": "", "GEMINI_MODEL": "",
			},
			wantName:   "chat/gemini/gemini-1.5-pro",
			wantConfig: true,
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"COMPLETION_PROVIDER": "davinci"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			c, err := NewFromEnv(context.Background())
			if tc.wantErr {
				if !apperr.IsConfig(err) {
					t.Fatalf("want ConfigError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFromEnv: %v", err)
			}
			if c.Name() != tc.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tc.wantName)
			}
			if got := apperr.IsConfig(c.Validate()); got != tc.wantConfig {
				t.Errorf("Validate() config error = %v, want %v", got, tc.wantConfig)
			}
		})
	}
}
