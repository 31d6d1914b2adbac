package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// ShortenAddress reduces a bech32 wallet address to its prefix and last four
// characters so operators can correlate log lines without the full address
// landing in log storage.
func ShortenAddress(addr string) string {
	trimmed := strings.TrimSpace(addr)
	idx := strings.LastIndex(trimmed, "1")
	if idx <= 0 || len(trimmed)-idx < 6 {
		return MaskValue(trimmed)
	}
	return trimmed[:idx+1] + "…" + trimmed[len(trimmed)-4:]
}

// MaskValue returns the canonical redacted placeholder for non-empty values.
// Empty values are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// WalletAttr builds a log attribute carrying a shortened wallet address.
func WalletAttr(addr string) slog.Attr {
	return slog.String("wallet", ShortenAddress(addr))
}

// TokenAttr masks push delivery tokens, which are bearer credentials.
func TokenAttr(key, token string) slog.Attr {
	return slog.String(key, MaskValue(token))
}
