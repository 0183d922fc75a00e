package relationship

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frahmantamala/evaluation-sync/internal"
	"github.com/frahmantamala/evaluation-sync/internal/core/datamodel/evaluation"
)

// LevelBand is an inclusive level range.
type LevelBand struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether lvl lies within the band.
func (b LevelBand) Contains(lvl int) bool {
	return lvl >= b.Min && lvl <= b.Max
}

// Policy classifies employees. Leaders sit at or above SeniorThreshold;
// managers carry one of ManagerPatterns in their title and a level inside
// MiddleBand. One employee may be both.
type Policy struct {
	SeniorThreshold int       `yaml:"senior_threshold"`
	ManagerPatterns []string  `yaml:"manager_patterns"`
	MiddleBand      LevelBand `yaml:"middle_band"`
}

// DefaultPolicy: leaders at 12 and above, managers titled 部门经理 or
// department manager within 5..9.
func DefaultPolicy() Policy {
	return Policy{
		SeniorThreshold: 12,
		ManagerPatterns: []string{"部门经理", "department manager"},
		MiddleBand:      LevelBand{Min: 5, Max: 9},
	}
}

// Validate rejects policies that could never classify anyone.
func (p Policy) Validate() error {
	if p.SeniorThreshold < 1 {
		return internal.NewValidationError("senior_threshold must be >= 1", internal.ErrCodeInvalidPolicy)
	}
	if len(p.ManagerPatterns) == 0 {
		return internal.NewValidationError("at least one manager pattern is required", internal.ErrCodeInvalidPolicy)
	}
	for _, pattern := range p.ManagerPatterns {
		if strings.TrimSpace(pattern) == "" {
			return internal.NewValidationError("manager patterns cannot be blank", internal.ErrCodeInvalidPolicy)
		}
	}
	if p.MiddleBand.Min < 1 || p.MiddleBand.Min > p.MiddleBand.Max {
		return internal.NewValidationError(
			fmt.Sprintf("middle_band %d..%d is not a valid range", p.MiddleBand.Min, p.MiddleBand.Max),
			internal.ErrCodeInvalidPolicy)
	}
	return nil
}

// IsLeader reports whether e evaluates managers.
func (p Policy) IsLeader(e evaluation.Employee) bool {
	return e.Level >= p.SeniorThreshold
}

// IsManager reports whether e is evaluated by leaders.
func (p Policy) IsManager(e evaluation.Employee) bool {
	if !p.MiddleBand.Contains(e.Level) {
		return false
	}
	title := strings.ToLower(e.Title)
	for _, pattern := range p.ManagerPatterns {
		if strings.Contains(title, strings.ToLower(strings.TrimSpace(pattern))) {
			return true
		}
	}
	return false
}

// PolicyProvider resolves the policy of a tenant.
type PolicyProvider interface {
	PolicyFor(tenantID string) Policy
}

// Policies is a default policy plus per-tenant overrides.
type Policies struct {
	defaults  Policy
	overrides map[string]Policy
}

// NewPolicies validates defaults and starts without overrides.
func NewPolicies(defaults Policy) (*Policies, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Policies{defaults: defaults, overrides: map[string]Policy{}}, nil
}

// PolicyFor returns the tenant override, or the defaults.
func (p *Policies) PolicyFor(tenantID string) Policy {
	if o, ok := p.overrides[tenantID]; ok {
		return o
	}
	return p.defaults
}

// policyOverride leaves unset fields to the defaults.
type policyOverride struct {
	SeniorThreshold *int       `yaml:"senior_threshold"`
	ManagerPatterns []string   `yaml:"manager_patterns"`
	MiddleBand      *LevelBand `yaml:"middle_band"`
}

type policyFile struct {
	Tenants map[string]policyOverride `yaml:"tenants"`
}

// LoadPolicies reads per-tenant overrides from a YAML file such as
//
//	tenants:
//	  acme:
//	    senior_threshold: 11
//	    middle_band: {min: 4, max: 9}
//
// An empty path yields the defaults for every tenant.
func LoadPolicies(path string, defaults Policy) (*Policies, error) {
	policies, err := NewPolicies(defaults)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return policies, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return policies, policies.apply(data)
}

// ParsePolicies is LoadPolicies over an in-memory document.
func ParsePolicies(data []byte, defaults Policy) (*Policies, error) {
	policies, err := NewPolicies(defaults)
	if err != nil {
		return nil, err
	}
	return policies, policies.apply(data)
}

func (p *Policies) apply(data []byte) error {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}

	for tenantID, o := range file.Tenants {
		policy := p.defaults
		policy.ManagerPatterns = append([]string(nil), p.defaults.ManagerPatterns...)
		if o.SeniorThreshold != nil {
			policy.SeniorThreshold = *o.SeniorThreshold
		}
		if len(o.ManagerPatterns) > 0 {
			policy.ManagerPatterns = o.ManagerPatterns
		}
		if o.MiddleBand != nil {
			policy.MiddleBand = *o.MiddleBand
		}
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("policy for tenant %s: %w", tenantID, err)
		}
		p.overrides[tenantID] = policy
	}
	return nil
}
