package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalPath returns the path of the local override file for `name`,
// ex. "config.json5" -> "config.local.json5".
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// readLayer decodes the json5 file at `path` into `out`, it reports false
// if the file does not exist or is empty.
func readLayer[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads a configuration file, `name` should come with a file extension.
// The following files are merged, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// If neither exists it returns os.ErrNotExist.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found, err := readLayer(name, &out)
	if err != nil {
		return out, err
	}

	localPath := LocalPath(name)
	var override T
	foundLocal, err := readLayer(localPath, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Debug("merging config with local overrides", "local", localPath)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadWithDefaults is ReadConfig where every field left zero by the files is taken
// from `defaults`. A missing configuration is not an error, it just yields `defaults`.
func ReadWithDefaults[T any](name string, defaults T) (T, error) {
	out, err := ReadConfig[T](name)
	if errors.Is(err, os.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return out, err
	}
	err = mergo.Merge(&out, defaults)
	if err != nil {
		return out, err
	}
	return out, nil
}
