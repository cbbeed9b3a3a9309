package sessions

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const identityFileName = "identity"

// CurrentIdentity returns the active identity, or "" when logged out.
func CurrentIdentity(basePath string) string {
	data, err := os.ReadFile(filepath.Join(basePath, identityFileName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SetIdentity records the active identity.
func SetIdentity(basePath, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return errors.New("identity must not be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return errors.Wrap(err, "failed to create storage directory")
	}
	if err := os.WriteFile(filepath.Join(basePath, identityFileName), []byte(identity+"\n"), 0o600); err != nil {
		return errors.Wrap(err, "failed to write identity file")
	}
	return nil
}

// ClearIdentity removes the active identity. Missing files are not an error.
func ClearIdentity(basePath string) error {
	err := os.Remove(filepath.Join(basePath, identityFileName))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove identity file")
	}
	return nil
}
