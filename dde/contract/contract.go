// Package contract tracks interface contracts between producer and consumer
// nodes, enabling mock-based speculative execution and post-hoc
// reconciliation.
//
// A producer node declares the shape of its output as a Contract. While the
// producer is still pending or running, the registry can hand consumers a
// schema-valid synthetic payload (a mock) so they may start work early. When
// the producer completes, Reconcile diffs the real output against the
// contract schema and the mock's shape; a violation triggers targeted rework
// of the consumers that ran against the mock.
package contract

import (
	"fmt"
	"sort"
	"time"
)

// FieldType enumerates the payload field types a schema can require.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeList   FieldType = "list"
)

// Field describes one field of a contract's interface schema.
type Field struct {
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
}

// Schema is the interface agreement: field name to field spec.
type Schema map[string]Field

// Validate checks a payload against the schema and returns the list of
// violations. An empty list means the payload fulfills the contract.
//
// Checks performed:
//   - every required field is present
//   - every present schema field has the declared type
//
// Extra fields not named by the schema are permitted; contracts constrain the
// agreed surface, not the whole payload.
func (s Schema) Validate(payload map[string]any) []string {
	var violations []string
	for _, name := range s.fieldNames() {
		spec := s[name]
		value, present := payload[name]
		if !present {
			if spec.Required {
				violations = append(violations, fmt.Sprintf("missing required field %q", name))
			}
			continue
		}
		if !matchesType(value, spec.Type) {
			violations = append(violations, fmt.Sprintf("field %q has wrong type: want %s", name, spec.Type))
		}
	}
	return violations
}

// SyntheticPayload generates a deterministic, schema-valid mock payload.
// Every schema field is populated, required or not, so consumers exercising
// optional fields still see a value.
func (s Schema) SyntheticPayload() map[string]any {
	payload := make(map[string]any, len(s))
	for _, name := range s.fieldNames() {
		switch s[name].Type {
		case TypeString:
			payload[name] = "mock-" + name
		case TypeNumber:
			payload[name] = float64(0)
		case TypeBool:
			payload[name] = false
		case TypeObject:
			payload[name] = map[string]any{}
		case TypeList:
			payload[name] = []any{}
		default:
			payload[name] = nil
		}
	}
	return payload
}

// equal reports whether two schemas agree on every field.
func (s Schema) equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for name, spec := range s {
		if other[name] != spec {
			return false
		}
	}
	return true
}

func (s Schema) fieldNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func matchesType(value any, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeList:
		_, ok := value.([]any)
		return ok
	default:
		return false
	}
}

// Contract is a versioned interface agreement between one producer node and
// one or more consumer nodes.
type Contract struct {
	// ID uniquely identifies the contract within a registry.
	ID string `json:"id" yaml:"id"`

	// Producer is the node ID whose output fulfills this contract.
	Producer string `json:"producer" yaml:"producer"`

	// Consumers are the node IDs entitled to consume this contract.
	Consumers []string `json:"consumers" yaml:"consumers"`

	// Version increments whenever the schema changes. A producer may not
	// retroactively change the schema of an already-registered version.
	Version int `json:"version" yaml:"version"`

	// Schema is the agreed interface shape.
	Schema Schema `json:"schema" yaml:"schema"`

	// MockPayload, when set, is handed to consumers instead of a synthetic
	// payload. It must be schema-valid; ActivateMock rejects it otherwise.
	MockPayload map[string]any `json:"mock,omitempty" yaml:"mock"`
}

// Verdict is the outcome of reconciling real producer output against a
// contract.
type Verdict string

const (
	// VerdictConsistent means the real output fulfills the contract; prior
	// mock-based consumer work remains valid.
	VerdictConsistent Verdict = "CONSISTENT"

	// VerdictViolated means the real output breaks the contract; consumers
	// that ran against the mock need rework.
	VerdictViolated Verdict = "VIOLATED"
)

// Record is the durable outcome of one reconciliation.
type Record struct {
	ContractID string    `json:"contract_id"`
	Producer   string    `json:"producer"`
	Consumers  []string  `json:"consumers"`
	Verdict    Verdict   `json:"verdict"`
	Diff       []string  `json:"diff,omitempty"`
	Rework     []string  `json:"triggered_rework_node_ids,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}
