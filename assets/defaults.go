package assets

import (
	_ "embed"
)

// DefaultRulesYAML contains the embedded starter rule document written by `hookgate init`.
//
//go:embed defaults/hooks.yaml
var DefaultRulesYAML []byte
