package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrStr(s string) *string     { return &s }
func ptrFloat(f float64) *float64 { return &f }

func validMinimalFile() *BudgetFile {
	return &BudgetFile{
		Budget: BudgetImport{Identifier: "Feature"},
		Nodes: []NodeImport{
			{Ref: "camera", Identifier: "1100"},
			{Ref: "op", ParentRef: ptrStr("camera"), Description: "Operator", Quantity: ptrFloat(2), Rate: ptrFloat(10)},
		},
	}
}

func validFullFile() *BudgetFile {
	return &BudgetFile{
		Budget: BudgetImport{Identifier: "Feature", Description: "Short film"},
		Fringes: []FringeImport{
			{Ref: "payroll", Name: "Payroll", Unit: "percent", Rate: ptrFloat(0.1), Cutoff: ptrFloat(1000)},
		},
		Nodes: []NodeImport{
			{Ref: "camera", Identifier: "1100", Description: "Camera"},
			{Ref: "op", ParentRef: ptrStr("camera"), Description: "Operator", Quantity: ptrFloat(2), Rate: ptrFloat(10), Fringes: []string{"payroll"}},
			{Ref: "ac", ParentRef: ptrStr("camera"), Description: "Assistant", Quantity: ptrFloat(1), Rate: ptrFloat(5), Actual: ptrFloat(4)},
			{Ref: "grip", Identifier: "1200"},
		},
		Groups: []GroupImport{
			{ParentRef: ptrStr("camera"), Name: "Crew", Color: "#d3869b", Members: []string{"op", "ac"}},
		},
		Markups: []MarkupImport{
			{ParentRef: ptrStr("camera"), Identifier: "OT", Unit: "percent", Rate: ptrFloat(0.2), Children: []string{"op"}},
			{Identifier: "OH", Unit: "flat", Rate: ptrFloat(100)},
		},
	}
}

func assertHasError(t *testing.T, errs []error, substr string) {
	t.Helper()
	for _, err := range errs {
		if strings.Contains(err.Error(), substr) {
			return
		}
	}
	require.Failf(t, "missing validation error", "want %q in %v", substr, errs)
}

func TestValidateBudgetFile_ValidMinimal(t *testing.T) {
	assert.Empty(t, ValidateBudgetFile(validMinimalFile()))
}

func TestValidateBudgetFile_ValidFull(t *testing.T) {
	assert.Empty(t, ValidateBudgetFile(validFullFile()))
}

func TestValidateBudgetFile_MissingBudgetIdentifier(t *testing.T) {
	f := validMinimalFile()
	f.Budget.Identifier = ""
	assertHasError(t, ValidateBudgetFile(f), "budget.identifier is required")
}

func TestValidateBudgetFile_AccountNeedsIdentifier(t *testing.T) {
	f := validMinimalFile()
	f.Nodes[0].Identifier = ""
	assertHasError(t, ValidateBudgetFile(f), "nodes[0].identifier is required for accounts")
}

func TestValidateBudgetFile_DuplicateRef(t *testing.T) {
	f := validMinimalFile()
	f.Nodes = append(f.Nodes, NodeImport{Ref: "camera", Identifier: "1200"})
	assertHasError(t, ValidateBudgetFile(f), `duplicate ref "camera"`)
}

func TestValidateBudgetFile_ParentMustComeFirst(t *testing.T) {
	f := validMinimalFile()
	f.Nodes[0], f.Nodes[1] = f.Nodes[1], f.Nodes[0]
	assertHasError(t, ValidateBudgetFile(f), `parent_ref "camera" must name an earlier node`)
}

func TestValidateBudgetFile_LeafFieldsOnParent(t *testing.T) {
	f := validMinimalFile()
	f.Nodes[0].Rate = ptrFloat(3)
	errs := ValidateBudgetFile(f)
	assertHasError(t, errs, "nodes[0].rate is only allowed on leaf subaccounts")

	f = validMinimalFile()
	f.Nodes = append(f.Nodes, NodeImport{Ref: "sub", ParentRef: ptrStr("op"), Description: "Day 1"})
	assertHasError(t, ValidateBudgetFile(f), "nodes[1].quantity is only allowed on leaf subaccounts")
}

func TestValidateBudgetFile_Fringes(t *testing.T) {
	f := validFullFile()
	f.Fringes[0].Unit = "hourly"
	f.Fringes[0].Rate = nil
	f.Nodes[1].Fringes = []string{"payroll", "union"}
	errs := ValidateBudgetFile(f)
	assertHasError(t, errs, `fringes[0].unit: invalid value "hourly"`)
	assertHasError(t, errs, "fringes[0].rate is required")
	assertHasError(t, errs, `unknown fringe ref "union"`)
}

func TestValidateBudgetFile_GroupMembersMustBeSiblings(t *testing.T) {
	f := validFullFile()
	f.Groups[0].Members = []string{"op", "grip"}
	assertHasError(t, ValidateBudgetFile(f), `node "grip" is not a child of "camera"`)
}

func TestValidateBudgetFile_NodeInTwoGroups(t *testing.T) {
	f := validFullFile()
	f.Groups = append(f.Groups, GroupImport{ParentRef: ptrStr("camera"), Name: "Again", Members: []string{"ac"}})
	assertHasError(t, ValidateBudgetFile(f), `node "ac" already belongs to groups[0]`)
}

func TestValidateBudgetFile_MarkupChildren(t *testing.T) {
	f := validFullFile()
	f.Markups[0].Children = nil
	f.Markups[1].Children = []string{"camera"}
	errs := ValidateBudgetFile(f)
	assertHasError(t, errs, "markups[0].children: percent markups need at least one child")
	assertHasError(t, errs, "markups[1].children: flat markups cannot reference children")
}

func TestValidateBudgetFile_UnknownOverlayParent(t *testing.T) {
	f := validFullFile()
	f.Markups[0].ParentRef = ptrStr("lighting")
	assertHasError(t, ValidateBudgetFile(f), `markups[0].parent_ref: unknown node ref "lighting"`)
}
