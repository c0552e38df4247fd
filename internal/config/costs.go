package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultOperationCost is charged when a tool has no explicit entry.
const DefaultOperationCost = 0.5

// CostTable maps tool names to their credit cost per operation.
type CostTable struct {
	Default float64            `yaml:"default"`
	Tools   map[string]float64 `yaml:"tools"`
}

// DefaultCostTable charges every tool the default operation cost.
func DefaultCostTable() *CostTable {
	return &CostTable{Default: DefaultOperationCost}
}

// LoadCostTable reads a YAML cost table. An empty path yields the default
// table.
func LoadCostTable(path string) (*CostTable, error) {
	if path == "" {
		return DefaultCostTable(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cost table: %w", err)
	}

	var table CostTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse cost table: %w", err)
	}
	if table.Default <= 0 {
		table.Default = DefaultOperationCost
	}
	return &table, nil
}

// Cost returns the credit cost for a tool.
func (t *CostTable) Cost(toolName string) float64 {
	if cost, ok := t.Tools[toolName]; ok {
		return cost
	}
	return t.Default
}
