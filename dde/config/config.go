// Package config loads workflow definitions and engine settings from YAML.
//
// A workflow file declares the graph, its contracts and the initial global
// context in one document:
//
//	id: release
//	version: "2"
//	globals:
//	  env: prod
//	contracts:
//	  - id: build-artifact
//	    producer: build
//	    consumers: [test]
//	    version: 1
//	    schema:
//	      url: {type: string, required: true}
//	nodes:
//	  - id: build
//	    produces: [build-artifact]
//	  - id: test
//	    depends_on: [build]
//	    consumes: [build-artifact]
//	    retry: {max_attempts: 3, base_delay: 2s, exponential: true}
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowdag/dde-go/dde"
	"github.com/flowdag/dde-go/dde/contract"
)

// Duration wraps time.Duration so YAML can spell it as "30s" or "5m".
// Bare integers are read as nanoseconds for symmetry with JSON encoding.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(v)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RetrySpec is the YAML shape of a node retry policy.
type RetrySpec struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	Exponential bool     `yaml:"exponential"`
	MaxDelay    Duration `yaml:"max_delay"`
}

// NodeSpec is the YAML shape of one workflow node.
type NodeSpec struct {
	ID        string    `yaml:"id"`
	DependsOn []string  `yaml:"depends_on"`
	Retry     RetrySpec `yaml:"retry"`
	Timeout   Duration  `yaml:"timeout"`
	Condition string    `yaml:"condition"`
	Produces  []string  `yaml:"produces"`
	Consumes  []string  `yaml:"consumes"`

	// Run is an optional shell command executed as the node's unit of work
	// by the CLI runner. Library embedders supply their own TaskExecutor and
	// can ignore it.
	Run string `yaml:"run"`
}

// FieldSpec is the YAML shape of one contract schema field.
type FieldSpec struct {
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// ContractSpec is the YAML shape of a contract declaration.
type ContractSpec struct {
	ID        string               `yaml:"id"`
	Producer  string               `yaml:"producer"`
	Consumers []string             `yaml:"consumers"`
	Version   int                  `yaml:"version"`
	Schema    map[string]FieldSpec `yaml:"schema"`
	Mock      map[string]any       `yaml:"mock"`
}

// Workflow is a full parsed workflow document.
type Workflow struct {
	ID        string         `yaml:"id"`
	Version   string         `yaml:"version"`
	Globals   map[string]any `yaml:"globals"`
	Contracts []ContractSpec `yaml:"contracts"`
	Nodes     []NodeSpec     `yaml:"nodes"`
}

// Load reads and parses a workflow file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a workflow document. Unknown fields are rejected so a typo in
// a node key fails loudly instead of silently dropping configuration.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if wf.ID == "" {
		return nil, fmt.Errorf("workflow id is required")
	}
	if len(wf.Nodes) == 0 {
		return nil, fmt.Errorf("workflow %s declares no nodes", wf.ID)
	}
	return &wf, nil
}

// Build materializes the workflow into engine objects: a validated graph and
// a registry populated with the declared contracts.
func (wf *Workflow) Build() (*dde.Graph, *contract.Registry, error) {
	graph := dde.NewGraph(wf.ID, wf.Version)
	for _, spec := range wf.Nodes {
		node := dde.Node{
			ID:        spec.ID,
			DependsOn: spec.DependsOn,
			Timeout:   spec.Timeout.Std(),
			Condition: spec.Condition,
			Produces:  spec.Produces,
			Consumes:  spec.Consumes,
			Retry: dde.RetryPolicy{
				MaxAttempts: spec.Retry.MaxAttempts,
				BaseDelay:   spec.Retry.BaseDelay.Std(),
				Exponential: spec.Retry.Exponential,
				MaxDelay:    spec.Retry.MaxDelay.Std(),
			},
		}
		if err := graph.Add(node); err != nil {
			return nil, nil, err
		}
	}
	if err := graph.Validate(); err != nil {
		return nil, nil, err
	}

	registry := contract.NewRegistry()
	for _, spec := range wf.Contracts {
		schema := make(contract.Schema, len(spec.Schema))
		for name, field := range spec.Schema {
			ft, err := parseFieldType(field.Type)
			if err != nil {
				return nil, nil, fmt.Errorf("contract %s field %s: %w", spec.ID, name, err)
			}
			schema[name] = contract.Field{Type: ft, Required: field.Required}
		}
		err := registry.Register(contract.Contract{
			ID:          spec.ID,
			Producer:    spec.Producer,
			Consumers:   spec.Consumers,
			Version:     spec.Version,
			Schema:      schema,
			MockPayload: spec.Mock,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return graph, registry, nil
}

// Commands returns the per-node shell commands declared in the workflow,
// keyed by node ID. Nodes without a run command are absent.
func (wf *Workflow) Commands() map[string]string {
	out := make(map[string]string)
	for _, spec := range wf.Nodes {
		if spec.Run != "" {
			out[spec.ID] = spec.Run
		}
	}
	return out
}

func parseFieldType(s string) (contract.FieldType, error) {
	switch contract.FieldType(s) {
	case contract.TypeString, contract.TypeNumber, contract.TypeBool, contract.TypeObject, contract.TypeList:
		return contract.FieldType(s), nil
	default:
		return "", fmt.Errorf("unknown field type %q", s)
	}
}
