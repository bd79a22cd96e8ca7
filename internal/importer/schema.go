package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// BudgetFile is the top-level JSON structure for budget import and export.
// Entities refer to each other by ref; nodes and overlays without a
// parent_ref sit directly under the budget.
type BudgetFile struct {
	Budget  BudgetImport   `json:"budget"`
	Fringes []FringeImport `json:"fringes,omitempty"`
	Nodes   []NodeImport   `json:"nodes"`
	Groups  []GroupImport  `json:"groups,omitempty"`
	Markups []MarkupImport `json:"markups,omitempty"`
}

type BudgetImport struct {
	Identifier  string `json:"identifier"`
	Description string `json:"description,omitempty"`
}

// FringeImport defines a budget-wide fringe.
type FringeImport struct {
	Ref    string   `json:"ref"`
	Name   string   `json:"name"`
	Color  string   `json:"color,omitempty"`
	Unit   string   `json:"unit"`
	Rate   *float64 `json:"rate"`
	Cutoff *float64 `json:"cutoff,omitempty"`
}

// NodeImport defines an account (no parent_ref, or a budget-level parent)
// or a subaccount. Leaf inputs are only accepted on nodes without children.
type NodeImport struct {
	Ref         string   `json:"ref"`
	ParentRef   *string  `json:"parent_ref,omitempty"`
	Identifier  string   `json:"identifier,omitempty"`
	Description string   `json:"description,omitempty"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Rate        *float64 `json:"rate,omitempty"`
	Multiplier  *float64 `json:"multiplier,omitempty"`
	Actual      *float64 `json:"actual,omitempty"`
	Fringes     []string `json:"fringes,omitempty"`
}

// GroupImport defines a group of sibling nodes.
type GroupImport struct {
	ParentRef *string  `json:"parent_ref,omitempty"`
	Name      string   `json:"name"`
	Color     string   `json:"color,omitempty"`
	Members   []string `json:"members"`
}

// MarkupImport defines a markup. Percent markups list the sibling nodes
// they apply to in children; flat markups list none.
type MarkupImport struct {
	ParentRef   *string  `json:"parent_ref,omitempty"`
	Identifier  string   `json:"identifier,omitempty"`
	Description string   `json:"description,omitempty"`
	Unit        string   `json:"unit"`
	Rate        *float64 `json:"rate"`
	Actual      *float64 `json:"actual,omitempty"`
	Children    []string `json:"children,omitempty"`
}

// LoadBudgetFile reads and parses a budget JSON file.
func LoadBudgetFile(path string) (*BudgetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f BudgetFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing budget file: %w", err)
	}
	return &f, nil
}

// Write encodes f as indented JSON.
func Write(w io.Writer, f *BudgetFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}
