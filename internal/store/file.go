package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sunvoy-scraper/internal/sunvoy"
)

// FileTokenStore keeps the session token as the only contents of a file.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) FileTokenStore {
	return FileTokenStore{path: path}
}

// ReadToken returns an empty token if the file does not exist.
func (s FileTokenStore) ReadToken(ctx context.Context) (sunvoy.Token, error) {
	contents, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return sunvoy.Token(strings.TrimSpace(string(contents))), nil
}

func (s FileTokenStore) WriteToken(ctx context.Context, token sunvoy.Token) error {
	return writeFileAtomic(s.path, []byte(token.String()), 0600)
}

// FileUsersWriter writes the user collection as indented json.
type FileUsersWriter struct {
	path string
}

func NewFileUsersWriter(path string) FileUsersWriter {
	return FileUsersWriter{path: path}
}

func (w FileUsersWriter) Path() string {
	return w.path
}

// WriteUsers replaces the output file in one step, readers never see a partial file.
func (w FileUsersWriter) WriteUsers(ctx context.Context, users []sunvoy.User) error {
	if users == nil {
		users = []sunvoy.User{}
	}
	contents, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}
	return writeFileAtomic(w.path, contents, 0644)
}

// writeFileAtomic writes to a temporary file next to `path` then renames it over `path`,
// rename is atomic as long as both live on the same filesystem.
func writeFileAtomic(path string, contents []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	_, err = tmp.Write(contents)
	if err != nil {
		cleanup()
		return err
	}
	err = tmp.Sync()
	if err != nil {
		cleanup()
		return err
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	err = os.Chmod(tmpPath, perm)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	err = os.Rename(tmpPath, path)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
