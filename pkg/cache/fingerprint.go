package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Fingerprint derives the cache key for op applied to input. Input is
// encoded as canonical JSON: object keys sorted, strings trimmed with inner
// whitespace collapsed, and absolute http(s) URLs normalized. Semantically
// identical inputs produce the same key.
func Fingerprint(op string, input any) (string, error) {
	canon, err := Canonical(input)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", op, err)
	}

	sum := sha256.Sum256(append([]byte(op+"\x00"), canon...))
	return op + ":" + hex.EncodeToString(sum[:]), nil
}

// MustFingerprint is Fingerprint for inputs that always encode.
func MustFingerprint(op string, input any) string {
	key, err := Fingerprint(op, input)
	if err != nil {
		panic(err)
	}
	return key
}

// Canonical returns the canonical JSON encoding used by Fingerprint.
func Canonical(input any) ([]byte, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case string:
		s, _ := json.Marshal(NormalizeString(t))
		buf.Write(s)
	case json.Number:
		buf.WriteString(t.String())
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

// NormalizeString trims s, collapses inner whitespace runs to one space and
// normalizes it when it is an absolute http(s) URL.
func NormalizeString(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if u, ok := NormalizeURL(s); ok {
		return u
	}
	return s
}

// NormalizeURL lower-cases scheme and host, drops default ports and the
// fragment, sorts query parameters and trims a trailing slash from the path.
// It reports false when s is not an absolute http(s) URL.
func NormalizeURL(s string) (string, bool) {
	if strings.ContainsAny(s, " \t\n") {
		return "", false
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	u.Scheme = scheme
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String(), true
}
