package config

import (
	"os"
	"path/filepath"
)

// RuleflowPath returns the root directory for ruleflow data.
// It uses $RULEFLOW_PATH if set, otherwise defaults to ~/.ruleflow.
func RuleflowPath() string {
	if v := os.Getenv("RULEFLOW_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".ruleflow")
	}
	return filepath.Join(home, ".ruleflow")
}

// ConfigPath returns the path to the ruleflow config file.
func ConfigPath() string {
	return filepath.Join(RuleflowPath(), "config.jsonc")
}

// DotenvPath returns the path to the ruleflow .env file.
func DotenvPath() string {
	return filepath.Join(RuleflowPath(), ".env")
}
