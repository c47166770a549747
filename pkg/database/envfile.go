package database

import (
	"errors"
	"os"

	"github.com/joho/godotenv"

	"github.com/installkit/installkit/pkg/setup"
)

// EnvFile keeps DATABASE_URL in the deployment's .env file in sync with the
// connection config.
type EnvFile struct {
	path string
}

// NewEnvFile creates an EnvFile for path.
func NewEnvFile(path string) *EnvFile {
	return &EnvFile{path: path}
}

// Writable reports whether the file exists and can be written.
func (e *EnvFile) Writable() bool {
	if e.path == "" {
		return false
	}
	f, err := os.OpenFile(e.path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// UpdateDatabaseURL sets DATABASE_URL, keeping every other variable.
// It returns false without error when the file does not exist.
func (e *EnvFile) UpdateDatabaseURL(databaseURL string) (bool, error) {
	if e.path == "" {
		return false, nil
	}

	env, err := godotenv.Read(e.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, setup.NewInternalError("failed to read env file", err)
	}

	env["DATABASE_URL"] = databaseURL

	if err := godotenv.Write(env, e.path); err != nil {
		return false, setup.NewInternalError("failed to write env file", err)
	}
	return true, nil
}
