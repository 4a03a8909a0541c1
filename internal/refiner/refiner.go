// Package refiner asks a model to repair generated playbook text that does
// not parse as YAML. It runs at most once per item, before the flattener's
// fallback is accepted.
package refiner

import "context"

// Repairer rewrites broken playbook text into syntactically valid YAML.
type Repairer interface {
	Repair(ctx context.Context, source, broken, parseErr string) (string, error)
}
