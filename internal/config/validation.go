package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// secretPaths lists the fields that must be env references
var secretPaths = [][2]string{
	{"session", "secret"},
	{"steam", "apiKey"},
	{"epic", "clientSecret"},
	{"ledger", "redisPassword"},
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("version field is required. Hint: Add \"version\": %q", ConfigVersion),
		})
	} else if version != ConfigVersion {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("unsupported version '%s' - use '%s'", version, ConfigVersion),
		})
	}

	server, ok := rawConfig["server"].(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "server",
			Message: "server field is required and must be an object",
		})
	} else if _, ok := server["baseURL"]; !ok {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "server.baseURL",
			Message: fmt.Sprintf("baseURL is not set, %s will be used", DefaultBaseURL),
		})
	}

	if session, ok := rawConfig["session"].(map[string]any); !ok || session["secret"] == nil {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "session.secret",
			Message: "session.secret is required. Example: {\"$env\": \"SESSION_SECRET\"}",
		})
	}

	for _, p := range secretPaths {
		section, ok := rawConfig[p[0]].(map[string]any)
		if !ok {
			continue
		}
		value, ok := section[p[1]]
		if !ok {
			continue
		}
		if err := validateEnvVarReference(value, p[1], p[0]+"."+p[1]); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}

	if ledger, ok := rawConfig["ledger"].(map[string]any); ok {
		validateLedgerStructure(ledger, result)
	}

	return result, nil
}

func validateLedgerStructure(ledger map[string]any, result *ValidationResult) {
	storage, _ := ledger["storage"].(string)
	switch LedgerStorage(storage) {
	case "", LedgerStorageCookie, LedgerStorageMemory:
	case LedgerStorageRedis:
		if _, ok := ledger["redisAddr"]; !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "ledger.redisAddr",
				Message: "redisAddr is required when storage is redis",
			})
		}
	case LedgerStorageFirestore:
		if _, ok := ledger["gcpProject"]; !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "ledger.gcpProject",
				Message: "gcpProject is required when storage is firestore",
			})
		}
	default:
		result.Errors = append(result.Errors, ValidationError{
			Path:    "ledger.storage",
			Message: fmt.Sprintf("invalid storage '%s' - use cookie, memory, redis or firestore", storage),
		})
	}

	if LedgerStorage(storage) == LedgerStorageMemory {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "ledger.storage",
			Message: "memory storage loses linked accounts on restart",
		})
	}
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName),
			})
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
