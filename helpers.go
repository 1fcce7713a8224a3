package pagespub

import (
	"log"
	"os"
	"strings"
)

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("pagespub: required environment variable %s is not set", key)
	}
	return v
}

// TokenFromEnv returns the first non-empty token among PAGESPUB_TOKEN and
// GITHUB_TOKEN.
func TokenFromEnv() string {
	return EnvOr("PAGESPUB_TOKEN", EnvOr("GITHUB_TOKEN", ""))
}

// firstNonEmpty returns the first argument that is not blank, trimmed.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
