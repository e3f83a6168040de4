package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalName returns the name of the override file that sits next to `name`,
// bggstats.json5 becomes bggstats.local.json5.
func LocalName(name string) string {
	prefix, ext := splitExt(filepath.Base(name))
	local := fmt.Sprintf("%s.local", prefix)
	if ext != "" {
		local = fmt.Sprintf("%s.%s", local, ext)
	}
	return filepath.Join(filepath.Dir(name), local)
}

func readInto[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}

	var parsed T
	err = json5.Unmarshal(contents, &parsed)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	err = mergo.Merge(out, parsed, mergo.WithOverride)
	if err != nil {
		return false, fmt.Errorf("merge %s: %w", path, err)
	}
	return true, nil
}

// Load reads a configuration file on top of `defaults`, `name` should come with a
// file extension, it will automatically be lopped off to produce the other
// extensions. The following files are merged, where higher number is more
// prioritized.
//
// 0. defaults
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// Zero values in a file never override what came before it. os.ErrNotExist is
// returned together with the defaults when neither file exists.
func Load[T any](name string, defaults T) (T, error) {
	out := defaults

	foundDefault, err := readInto(name, &out)
	if err != nil {
		return defaults, err
	}

	localPath := LocalName(name)
	foundLocal, err := readInto(localPath, &out)
	if err != nil {
		return defaults, err
	}
	if foundLocal {
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !foundDefault && !foundLocal {
		return defaults, os.ErrNotExist
	}
	return out, nil
}

// ReadConfig is Load without defaults.
func ReadConfig[T any](name string) (T, error) {
	var zero T
	return Load(name, zero)
}

// LoadRecursively is Load but it goes up the filesystem from the working
// directory until the root to find a configuration file matching the name.
func LoadRecursively[T any](name string, defaults T) (T, string, error) {
	root, err := filepath.Abs("/")
	if err != nil {
		return defaults, "", err
	}
	current, err := os.Getwd()
	if err != nil {
		return defaults, "", err
	}

	for {
		path := filepath.Join(current, name)
		config, err := Load(path, defaults)
		if err == nil {
			return config, path, nil
		}
		if !os.IsNotExist(err) {
			return defaults, "", err
		}
		if current == root {
			break
		}
		current = filepath.Dir(current)
	}

	return defaults, "", os.ErrNotExist
}
