package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/gamefront/internal"
	"github.com/dgellow/gamefront/internal/config"
	"github.com/dgellow/gamefront/internal/log"
	"github.com/joho/godotenv"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": config.ConfigVersion,
		"server": map[string]any{
			"baseURL": "https://games.example.com",
			"addr":    config.DefaultAddr,
			"name":    config.DefaultName,
		},
		"session": map[string]any{
			"secret": map[string]string{"$env": "SESSION_SECRET"},
			"ttl":    "720h",
		},
		"steam": map[string]any{
			"apiKey": map[string]string{"$env": "STEAM_API_KEY"},
		},
		"epic": map[string]any{
			"clientId":     "your-epic-client-id",
			"clientSecret": map[string]string{"$env": "EPIC_CLIENT_SECRET"},
		},
		"ledger": map[string]any{
			"storage": string(config.LedgerStorageCookie),
			"ttl":     "8760h",
		},
		"catalog": map[string]any{
			"cacheTtl":    "5m",
			"enrichLimit": config.DefaultEnrichLimit,
			"enrichDelay": "200ms",
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, err := range result.Errors {
			if err.Path != "" {
				fmt.Printf("  - %s: %s\n", err.Path, err.Message)
			} else {
				fmt.Printf("  - %s\n", err.Message)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			if warn.Path != "" {
				fmt.Printf("  - %s: %s\n", warn.Path, warn.Message)
			} else {
				fmt.Printf("  - %s\n", warn.Message)
			}
		}
	}

	fmt.Println()
	switch {
	case len(result.Errors) > 0:
		fmt.Println("Result: FAIL")
		return fmt.Errorf("validation failed: %d error(s)", len(result.Errors))
	case len(result.Warnings) > 0:
		fmt.Println("Result: PASS (with warnings)")
	default:
		fmt.Println("Result: PASS")
	}
	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (configuration is read from the environment when omitted)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading configuration, if present")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	// a missing .env is normal in production
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
			log.LogWarn("Failed to load %s: %v", *envFile, err)
		}
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	var cfg config.Config
	var err error
	if *conf != "" {
		cfg, err = config.Load(*conf)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting gamefront", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	app, err := internal.New(context.Background(), cfg)
	if err != nil {
		log.LogError("Failed to create gamefront: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
