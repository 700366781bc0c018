package secrets

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// Static returns a Loader that always yields vals. Empty values are dropped.
func Static(vals map[string]string) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string, len(vals))
		for k, v := range vals {
			if v != "" {
				out[k] = v
			}
		}
		return out, nil
	}
}

// FileLoader returns a Loader that reads KEY=VALUE pairs from path on every
// call without touching the process environment. An empty path or a missing
// file yields no values.
func FileLoader(path string) Loader {
	return func() (map[string]string, error) {
		if path == "" {
			return map[string]string{}, nil
		}
		vals, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read secrets file %s: %w", path, err)
		}
		return vals, nil
	}
}

// Merge combines loaders; non-empty values from later loaders win.
func Merge(loaders ...Loader) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string)
		for _, l := range loaders {
			vals, err := l()
			if err != nil {
				return nil, err
			}
			for k, v := range vals {
				if v != "" {
					out[k] = v
				}
			}
		}
		return out, nil
	}
}
