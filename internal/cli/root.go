package cli

import (
	"context"
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/alexanderramin/budgetcore/internal/service"
	"github.com/spf13/cobra"
)

// App holds the collaborators used by CLI commands.
type App struct {
	API service.BudgetAPI
	// NewProcessor returns a fresh change processor bound to API. Every
	// command that edits or displays a budget runs its own processor.
	NewProcessor func() *engine.Processor
	// IsInteractive reports whether stdout is a terminal. Nil means no.
	IsInteractive func() bool
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	budget int64
}

// resolveBudget returns the budget named by --budget, or the only budget
// when there is exactly one.
func (o *rootOptions) resolveBudget(ctx context.Context, app *App) (domain.ID, error) {
	if o.budget != 0 {
		return domain.ID(o.budget), nil
	}
	budgets, err := app.API.ListBudgets(ctx)
	if err != nil {
		return 0, err
	}
	switch len(budgets) {
	case 0:
		return 0, fmt.Errorf("no budgets yet; create one with: budgetctl budget create IDENTIFIER")
	case 1:
		return budgets[0].ID, nil
	}
	return 0, fmt.Errorf("%d budgets exist; choose one with --budget", len(budgets))
}

// NewRootCmd creates the top-level "budgetctl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "budgetctl",
		Short:         "Hierarchical production budgets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64VarP(&opts.budget, "budget", "b", 0, "Budget ID (defaults to the only budget)")

	root.AddCommand(
		newBudgetCmd(app, opts),
		newAddCmd(app, opts),
		newSetCmd(app, opts),
		newDeleteCmd(app, opts),
		newGroupCmd(app, opts),
		newMarkupCmd(app, opts),
		newFringeCmd(app, opts),
		newTableCmd(app, opts),
		newTreeCmd(app, opts),
		newSearchCmd(app, opts),
		newWatchCmd(app, opts),
	)

	return root
}
