// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"slices"
)

// EnvKey is the variable holding the environment tag.
const EnvKey = "ENV"

// Environment selects the deployment profile.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Test        Environment = "test"
)

// Environments returns every supported tag.
func Environments() []Environment {
	return []Environment{Development, Staging, Production, Test}
}

// Valid reports whether e is a supported tag.
func (e Environment) Valid() bool {
	return slices.Contains(Environments(), e)
}

// Deployed is true for staging and production. Deployed tags require
// explicit storage paths and use the cached template loader.
func (e Environment) Deployed() bool {
	return e == Staging || e == Production
}

func (e Environment) String() string { return string(e) }

// ResolveEnvironmentTag reads ENV from src and checks it against the
// supported set.
func ResolveEnvironmentTag(src Source) (Environment, error) {
	raw, ok := src(EnvKey)
	if !ok || raw == "" {
		return "", newError(ErrUnknownEnvironment, EnvKey, "not set", nil)
	}
	env := Environment(raw)
	if !env.Valid() {
		return "", newError(ErrUnknownEnvironment, EnvKey,
			fmt.Sprintf("%q is not one of %v", raw, Environments()), nil)
	}
	return env, nil
}
