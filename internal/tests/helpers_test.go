package tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"shipclass/internal/app"
	"shipclass/internal/config"
	"shipclass/internal/services"
	"shipclass/pkg/categorizer"
)

var partHeader = regexp.MustCompile(`(?m)^Part (\d+):\n(?:.*\n)*?Part Name: (.*)$`)

// scriptedCompletion answers classification prompts without a network call:
// parts whose name mentions a pump are ship common systems, everything
// else is hull.
type scriptedCompletion struct {
	mu      sync.Mutex
	prompts []string
	failing bool
}

func (s *scriptedCompletion) GenerateChatCompletion(ctx context.Context, messages []services.ChatMessage) (string, error) {
	return s.Complete(ctx, messages[len(messages)-1].Content)
}

func (s *scriptedCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return "", fmt.Errorf("service unavailable")
	}

	var sb strings.Builder
	for _, m := range partHeader.FindAllStringSubmatch(prompt, -1) {
		category := "Hull"
		if strings.Contains(strings.ToLower(m[2]), "pump") {
			category = "Ship Common Systems"
		}
		fmt.Fprintf(&sb, "Part %s:\nType: component\nCategory: %s\n\n", m[1], category)
	}
	return sb.String(), nil
}

func (s *scriptedCompletion) Status() services.ProviderStatus { return services.ProviderStatusActive }
func (s *scriptedCompletion) Name() string                    { return "scripted" }
func (s *scriptedCompletion) ModelName() string               { return "scripted-1" }

func (s *scriptedCompletion) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = ":memory:"
	cfg.Classifier.Provider = config.ProviderOpenAI
	cfg.Classifier.Model = "scripted-1"
	cfg.Classifier.Columns = []categorizer.Column{
		{Name: "Part Name", Label: "Part Name"},
		{Name: "equipment", Label: "Equipment"},
	}
	cfg.Classifier.BatchSize = 2
	cfg.Classifier.Workers = 2
	cfg.Classifier.MaxAttempts = 1
	cfg.Input.ChunkSize = 3
	cfg.Input.ChunkFolder = filepath.Join(dir, "chunks")
	cfg.Output.Folder = filepath.Join(dir, "classified_chunks")
	return cfg
}

// newTestApp builds an app on an in-memory ledger whose classifier talks to
// completion instead of a real provider.
func newTestApp(t *testing.T, completion *scriptedCompletion) *app.App {
	t.Helper()
	ctx := context.Background()
	a, err := app.NewApp(ctx, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	a.CompletionService = completion
	require.NoError(t, a.InitClassification(ctx, false))
	return a
}

func writeInventory(t *testing.T, path string, parts ...string) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("Part Name,equipment\n")
	for _, p := range parts {
		fmt.Fprintf(&sb, "%s,main engine\n", p)
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}
