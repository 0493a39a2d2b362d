// Package convert hosts both conversion directions and the pipeline entry
// operations. Category dispatch is an explicit switch over the closed
// category set; no dynamic registration.
package convert

import "errors"

// Error categories. Warnings are logged and never interrupt a run; these
// abort the smallest enclosing unit (definition, node, or file).
var (
	// ErrStructural marks malformed text/JSON syntax; aborts the file.
	ErrStructural = errors.New("structural parse error")
	// ErrSchema marks a required key missing on a definition; aborts that
	// definition only.
	ErrSchema = errors.New("schema error")
	// ErrReference marks a dangling cross-node reference; aborts that
	// node's conversion only.
	ErrReference = errors.New("reference error")
)
