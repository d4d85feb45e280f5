package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrMissingAPIKey = errors.New("missing API key")

// SecretReader asks the user for a secret without echoing it.
type SecretReader interface {
	IsTerminal() bool
	ReadSecret(prompt string) (string, error)
}

// NewTerminalReader reads secrets from in, writing prompts to out.
func NewTerminalReader(in *os.File, out io.Writer) SecretReader {
	return &terminalReader{in: in, out: out}
}

type terminalReader struct {
	in  *os.File
	out io.Writer
}

func (r *terminalReader) IsTerminal() bool {
	return term.IsTerminal(int(r.in.Fd()))
}

func (r *terminalReader) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	b, err := term.ReadPassword(int(r.in.Fd()))
	fmt.Fprintln(r.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ResolveAPIKey makes sure the configured provider has a key. When none was
// configured and r is an interactive terminal the user is prompted for it.
func (c *Config) ResolveAPIKey(r SecretReader) error {
	if strings.TrimSpace(c.APIKey()) != "" {
		return nil
	}

	envName := "GEMINI_API_KEY"
	if c.Classifier.Provider == ProviderOpenAI {
		envName = "OPENAI_API_KEY"
	}

	if r == nil || !r.IsTerminal() {
		return fmt.Errorf("%w: set %s or classifier.%s_api_key", ErrMissingAPIKey, envName, c.Classifier.Provider)
	}

	key, err := r.ReadSecret(fmt.Sprintf("Enter your %s: ", envName))
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty input", ErrMissingAPIKey)
	}
	c.SetAPIKey(key)
	return nil
}
