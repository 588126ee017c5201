package config

import (
	"errors"
	"strings"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("config: ReadBytes not supported by map provider, use Read() instead")

// mapProvider is a koanf provider that loads configuration from a map of
// dotted keys, used for defaults and flag overrides.
type mapProvider map[string]any

// ReadBytes returns an error as map provider doesn't support byte serialization.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read returns the configuration map with dotted keys expanded into nested maps.
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any)
	for key, value := range m {
		setPath(out, key, value)
	}
	return out, nil
}

// setPath stores value under a dotted key, creating intermediate maps.
func setPath(dst map[string]any, key string, value any) {
	for {
		head, rest, nested := strings.Cut(key, ".")
		if !nested {
			dst[head] = value
			return
		}
		child, ok := dst[head].(map[string]any)
		if !ok {
			child = make(map[string]any)
			dst[head] = child
		}
		dst, key = child, rest
	}
}
