package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Severity ranks how urgent a notification is.
type Severity int8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String renders the severity for logs and notifications.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Cadence assigns a data group to one of the three poll timers.
type Cadence int8

const (
	CadenceFast   Cadence = iota // 60s
	CadenceMedium                // 5m
	CadenceSlow                  // 10m
)

// Data groups fetched from the game API. Each group is a named subset of
// API fields retrieved together and merged into the subject's observed state.
const (
	GroupBars      = "bars"
	GroupCooldowns = "cooldowns"
	GroupTravel    = "travel"
	GroupMoney     = "money"
	GroupStatus    = "status"
)

// Config carries the per-alert tunables referenced by predicates and
// message renderers.
type Config struct {
	CashThreshold decimal.Decimal
}

// Definition is one immutable alert in the catalog. Condition implements
// the rising-edge predicate, Reset the per-alert re-arm policy, Message the
// notification body. All three must tolerate empty payloads.
type Definition struct {
	Key      string
	Group    string
	Cadence  Cadence
	Cooldown time.Duration
	Severity Severity
	Title    string
	Emoji    string

	Condition func(prev, curr Payload, cfg Config) bool
	Reset     func(prev, curr Payload) bool
	Message   func(curr, prev Payload, cfg Config) []string
}

// Registry is the immutable, statically constructed catalog of definitions.
type Registry struct {
	defs    []Definition
	byGroup map[string][]Definition
	cadence map[string]Cadence
}

// NewRegistry builds a registry from the given definitions. Duplicate keys
// and groups split across cadences are programmer errors and panic at init.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{
		defs:    defs,
		byGroup: make(map[string][]Definition),
		cadence: make(map[string]Cadence),
	}
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if _, dup := seen[def.Key]; dup {
			panic(fmt.Sprintf("catalog: duplicate alert key %q", def.Key))
		}
		seen[def.Key] = struct{}{}
		if existing, ok := r.cadence[def.Group]; ok && existing != def.Cadence {
			panic(fmt.Sprintf("catalog: group %q assigned to two cadences", def.Group))
		}
		r.cadence[def.Group] = def.Cadence
		r.byGroup[def.Group] = append(r.byGroup[def.Group], def)
	}
	return r
}

// All returns every definition in registration order.
func (r *Registry) All() []Definition {
	return r.defs
}

// ForGroup returns the definitions bound to a data group, in registration
// order. Order affects only log ordering, not correctness.
func (r *Registry) ForGroup(group string) []Definition {
	return r.byGroup[group]
}

// Groups lists the data groups polled at the given cadence.
func (r *Registry) Groups(c Cadence) []string {
	var groups []string
	for _, def := range r.defs {
		if def.Cadence != c {
			continue
		}
		if contains(groups, def.Group) {
			continue
		}
		groups = append(groups, def.Group)
	}
	return groups
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
