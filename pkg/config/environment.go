package config

import (
	"fmt"
	"strings"
)

// Environment is the deployment environment a service runs in.
type Environment string

const (
	EnvLocal       Environment = "local"
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// ParseEnvironment normalizes an environment name, accepting common aliases.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return EnvLocal, nil
	case "development", "dev":
		return EnvDevelopment, nil
	case "staging", "stage":
		return EnvStaging, nil
	case "production", "prod":
		return EnvProduction, nil
	default:
		return "", fmt.Errorf("unknown environment %q", s)
	}
}

// IsProduction reports whether the environment requires the strict validation
// path (all security-relevant fields present).
func (e Environment) IsProduction() bool {
	return e == EnvProduction
}

// RequireInProduction returns an error when running in production and the
// named field is empty. Services call this from their validate() methods.
func (e Environment) RequireInProduction(field, value string) error {
	if e.IsProduction() && value == "" {
		return fmt.Errorf("%s is required in production", field)
	}
	return nil
}
