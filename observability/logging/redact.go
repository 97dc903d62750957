package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// plainKeys may be logged verbatim through MaskField. Everything else passed
// to MaskField is treated as a secret.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"component": {},
	"ledger":    {},
	"tx":        {},
	"type":      {},
	"method":    {},
	"reason":    {},
}

func isPlain(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField builds a string attribute whose value is redacted unless key is a
// known non-sensitive key. Empty values pass through so operators can tell
// "unset" apart from "set".
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || isPlain(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskDSN hides the password of a database DSN. URL DSNs keep scheme, user,
// host and path; key=value DSNs keep every pair except password. Anything
// else, such as a sqlite path, is returned unchanged.
func MaskDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return RedactedValue
		}
		if u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), RedactedValue)
			}
		}
		q := u.Query()
		if q.Has("password") {
			q.Set("password", RedactedValue)
			u.RawQuery = q.Encode()
		}
		out, err := url.PathUnescape(u.String())
		if err != nil {
			return u.String()
		}
		return out
	}
	if !strings.Contains(trimmed, "=") {
		return dsn
	}
	fields := strings.Fields(trimmed)
	for i, field := range fields {
		key, _, ok := strings.Cut(field, "=")
		if ok && strings.EqualFold(key, "password") {
			fields[i] = key + "=" + RedactedValue
		}
	}
	return strings.Join(fields, " ")
}
