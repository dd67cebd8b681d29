// Package wire encodes and decodes the flat key=value text format spoken by the
// unit's local HTTP interface.
package wire

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var ErrMalformedResponse = errors.New("malformed response")

// Decode splits a body of the form "k1=v1,k2=v2" into a mapping. Values are left
// as the device sent them.
func Decode(text string) (map[string]string, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	fields := make(map[string]string)
	for _, segment := range strings.Split(text, ",") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			return nil, fmt.Errorf("%w: segment %q has no '='", ErrMalformedResponse, segment)
		}
		if key == "" {
			return nil, fmt.Errorf("%w: segment %q has an empty key", ErrMalformedResponse, segment)
		}
		fields[key] = value
	}
	return fields, nil
}

// Encode renders a mapping in the device's body format with keys in sorted order.
func Encode(fields map[string]string) string {
	keys := sortedKeys(fields)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return strings.Join(parts, ",")
}

// Query renders a mapping as a URL query string, keys sorted.
func Query(fields map[string]string) string {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return values.Encode()
}

func sortedKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
