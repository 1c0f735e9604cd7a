// Package configs provides embedded configuration templates for peopledex.
//
// Templates are embedded at build time using Go's //go:embed directive,
// so they are available in every distribution (go install and binary
// releases alike).
//
// The templates are used by:
//   - cmd/peopledex/cmd/config.go → `peopledex config init` creates the
//     user config at ~/.config/peopledex/config.yaml
//   - cmd/peopledex/cmd/config.go → `peopledex config init --project`
//     creates .peopledex.yaml in the project directory
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/peopledex/config.yaml)
//  3. Project config (.peopledex.yaml)
//  4. Environment variables (PEOPLEDEX_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Contains machine-specific settings like the embedding provider, summary
// model, and log level; settings that apply to every directory on this
// machine. API keys are never stored here; they come from VOYAGE_API_KEY
// and OPENAI_API_KEY environment variables.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Contains directory-specific settings like the corpus path, data dir,
// and search tuning; settings that are version-controlled alongside the
// corpus.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
