package contract

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a contract ID is not registered.
var ErrNotFound = errors.New("contract not found")

// ErrStaleVersion is returned when a registration changes an existing
// contract's schema without incrementing its version.
var ErrStaleVersion = errors.New("schema changed without version increment")

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMockTTL bounds how long an activated mock satisfies contract-gated
// readiness. Zero (the default) means mocks never expire.
func WithMockTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.mockTTL = ttl
	}
}

// Registry tracks contracts and their activated mocks for one workflow.
//
// Registries are explicit dependencies: construct one at startup and pass it
// to the scheduler. There is no package-level registry, so concurrent runs
// and tests stay isolated.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
	mocks     map[string]*activeMock
	mockTTL   time.Duration
	now       func() time.Time
}

type activeMock struct {
	payload     map[string]any
	version     int
	activatedAt time.Time
	expiresAt   time.Time // zero means no expiry
}

// NewRegistry creates an empty contract registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		contracts: make(map[string]*Contract),
		mocks:     make(map[string]*activeMock),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records a contract, or upgrades an existing one to a new version.
//
// Rules enforced:
//   - ID and Producer must be non-empty; Version must be >= 1
//   - re-registering the same version with a different schema fails with
//     ErrStaleVersion (schemas are immutable per version)
//   - registering a lower version than the current one is rejected
//
// Upgrading to a new version invalidates any active mock for the contract;
// consumers must re-activate against the new schema.
func (r *Registry) Register(c Contract) error {
	if c.ID == "" {
		return errors.New("contract ID cannot be empty")
	}
	if c.Producer == "" {
		return fmt.Errorf("contract %s: producer cannot be empty", c.ID)
	}
	if c.Version < 1 {
		return fmt.Errorf("contract %s: version must be >= 1", c.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.contracts[c.ID]; ok {
		if c.Version < existing.Version {
			return fmt.Errorf("contract %s: version %d is older than registered version %d",
				c.ID, c.Version, existing.Version)
		}
		if c.Version == existing.Version {
			if !c.Schema.equal(existing.Schema) {
				return fmt.Errorf("contract %s version %d: %w", c.ID, c.Version, ErrStaleVersion)
			}
			// Idempotent re-registration.
			return nil
		}
		// Version bump: prior mock no longer describes the agreed shape.
		delete(r.mocks, c.ID)
	}

	copied := c
	copied.Consumers = append([]string(nil), c.Consumers...)
	copied.Schema = make(Schema, len(c.Schema))
	for name, spec := range c.Schema {
		copied.Schema[name] = spec
	}
	r.contracts[c.ID] = &copied
	return nil
}

// Get returns the contract registered under id.
func (r *Registry) Get(id string) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[id]
	if !ok {
		return Contract{}, fmt.Errorf("contract %s: %w", id, ErrNotFound)
	}
	return *c, nil
}

// ByProducer returns all contracts produced by the given node ID, sorted by
// contract ID for determinism.
func (r *Registry) ByProducer(nodeID string) []Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Contract
	for _, c := range r.contracts {
		if c.Producer == nodeID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActivateMock makes a synthetic stand-in for the contract's output available
// to consumers and returns the mock payload.
//
// If the contract declares a MockPayload it is used after schema validation;
// otherwise a deterministic synthetic payload is generated from the schema.
// Re-activation refreshes the expiry and returns the same payload shape.
func (r *Registry) ActivateMock(id string) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[id]
	if !ok {
		return nil, fmt.Errorf("contract %s: %w", id, ErrNotFound)
	}

	payload := c.MockPayload
	if payload == nil {
		payload = c.Schema.SyntheticPayload()
	} else if violations := c.Schema.Validate(payload); len(violations) > 0 {
		return nil, fmt.Errorf("contract %s: declared mock payload violates schema: %v", id, violations)
	}

	now := r.now()
	mock := &activeMock{
		payload:     payload,
		version:     c.Version,
		activatedAt: now,
	}
	if r.mockTTL > 0 {
		mock.expiresAt = now.Add(r.mockTTL)
	}
	r.mocks[id] = mock
	return payload, nil
}

// MockFor returns the active, unexpired mock payload for the contract, if
// any. An expired or never-activated mock does not satisfy contract-gated
// readiness.
func (r *Registry) MockFor(id string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mock, ok := r.mocks[id]
	if !ok {
		return nil, false
	}
	if !mock.expiresAt.IsZero() && r.now().After(mock.expiresAt) {
		return nil, false
	}
	return mock.payload, true
}

// DeactivateMock withdraws the contract's active mock, if any. Called when
// the producer fails: a mock for output that will never materialize must not
// keep satisfying readiness.
func (r *Registry) DeactivateMock(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mocks, id)
}

// MockActive reports whether an unexpired mock exists for the contract.
func (r *Registry) MockActive(id string) bool {
	_, ok := r.MockFor(id)
	return ok
}

// Reconcile diffs the producer's real output against the contract.
//
// Two checks feed the verdict:
//  1. schema fulfillment: the real output must validate against the
//     interface schema
//  2. mock shape: every field the consumers saw on the mock must be present
//     in the real output (consumers may have built against it)
//
// The mock is deactivated either way; after the producer completes, the real
// output is the source of truth. The returned record carries the verdict and
// diff; the caller decides which consumers need rework.
func (r *Registry) Reconcile(id string, actual map[string]any) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[id]
	if !ok {
		return Record{}, fmt.Errorf("contract %s: %w", id, ErrNotFound)
	}

	diff := c.Schema.Validate(actual)
	if mock, active := r.mocks[id]; active {
		for _, name := range sortedPayloadKeys(mock.payload) {
			if _, present := actual[name]; !present {
				if _, inSchema := c.Schema[name]; !inSchema {
					diff = append(diff, fmt.Sprintf("field %q present on mock but absent from real output", name))
				}
			}
		}
	}
	delete(r.mocks, id)

	record := Record{
		ContractID: c.ID,
		Producer:   c.Producer,
		Consumers:  append([]string(nil), c.Consumers...),
		Verdict:    VerdictConsistent,
		CheckedAt:  r.now(),
	}
	if len(diff) > 0 {
		record.Verdict = VerdictViolated
		record.Diff = diff
	}
	return record, nil
}

// IDs returns all registered contract IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.contracts))
	for id := range r.contracts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedPayloadKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
