package ratelimit

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/promptvault/gateway/pkg/auth"
)

// PlanLimits holds the two ceilings of a plan
type PlanLimits struct {
	// PerMinute is the max requests in any 60 second window
	PerMinute int64 `yaml:"per_minute"`
	// PerMonth is the max requests per calendar month (UTC)
	PerMonth int64 `yaml:"per_month"`
}

// PlanTable maps each plan to its limits. It is built once at startup and
// only read afterwards.
type PlanTable map[auth.Plan]PlanLimits

// DefaultPlanTable returns the built-in plan ceilings
func DefaultPlanTable() PlanTable {
	return PlanTable{
		auth.PlanFree: {PerMinute: 10, PerMonth: 500},
		auth.PlanPro:  {PerMinute: 60, PerMonth: 10_000},
		auth.PlanTeam: {PerMinute: 300, PerMonth: 100_000},
	}
}

// Lookup returns the limits of plan. Unknown plans get the free tier.
func (t PlanTable) Lookup(plan auth.Plan) PlanLimits {
	if limits, ok := t[plan]; ok {
		return limits
	}
	return t[auth.PlanFree]
}

// Validate checks that every known plan has positive ceilings
func (t PlanTable) Validate() error {
	for _, plan := range []auth.Plan{auth.PlanFree, auth.PlanPro, auth.PlanTeam} {
		limits, ok := t[plan]
		if !ok {
			return fmt.Errorf("plan %q has no limits", plan)
		}
		if limits.PerMinute <= 0 || limits.PerMonth <= 0 {
			return fmt.Errorf("plan %q limits must be positive (per_minute=%d, per_month=%d)",
				plan, limits.PerMinute, limits.PerMonth)
		}
	}
	return nil
}

type planFile struct {
	Plans map[string]PlanLimits `yaml:"plans"`
}

// LoadPlanTable reads plan overrides from a YAML file on top of the
// defaults. An empty path returns the defaults.
func LoadPlanTable(path string) (PlanTable, error) {
	table := DefaultPlanTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}

	return parsePlanTable(table, data)
}

func parsePlanTable(table PlanTable, data []byte) (PlanTable, error) {
	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plans file: %w", err)
	}

	names := make([]string, 0, len(file.Plans))
	for name := range file.Plans {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		plan := auth.Plan(name)
		if !plan.Valid() {
			return nil, fmt.Errorf("unknown plan %q in plans file", name)
		}
		table[plan] = file.Plans[name]
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
