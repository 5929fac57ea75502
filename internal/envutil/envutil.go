package envutil

import (
	"os"
	"strings"
)

// IsDev reports whether GAMEFRONT_ENV selects development mode, where cookies
// are issued without the Secure attribute so plain-http localhost works.
func IsDev() bool {
	switch strings.ToLower(os.Getenv("GAMEFRONT_ENV")) {
	case "development", "dev":
		return true
	}
	return false
}

// BaseURLOverride returns GAMEFRONT_BASE_URL without a trailing slash.
// Hosted dev environments set it when the public URL differs from the configured one.
func BaseURLOverride() string {
	return strings.TrimRight(os.Getenv("GAMEFRONT_BASE_URL"), "/")
}
