package cli

import (
	"fmt"
	"os"

	"github.com/alexanderramin/budgetcore/internal/cli/formatter"
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/importer"
	"github.com/alexanderramin/budgetcore/internal/tree"
	"github.com/spf13/cobra"
)

func newBudgetCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage budgets",
	}

	cmd.AddCommand(
		newBudgetCreateCmd(app),
		newBudgetListCmd(app),
		newBudgetShowCmd(app, opts),
		newBudgetRemoveCmd(app),
		newBudgetImportCmd(app),
		newBudgetExportCmd(app, opts),
	)

	return cmd
}

func newBudgetCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create IDENTIFIER [DESCRIPTION]",
		Short: "Create a new budget",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := ""
			if len(args) > 1 {
				desc = args[1]
			}
			b, err := app.API.CreateBudget(cmd.Context(), args[0], desc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created budget %s (%s)\n", formatter.Bold(b.Label()), b.ID)
			return nil
		},
	}
}

func newBudgetListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List budgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			budgets, err := app.API.ListBudgets(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatBudgets(budgets))
			return nil
		},
	}
}

func newBudgetShowCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show budget totals and load diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, opts, func(s *session) error {
				snap := s.p.Snapshot()
				root, _ := snap.Node(snap.Root())
				out := cmd.OutOrStdout()
				fmt.Fprint(out, formatter.FormatSummary(root))
				fmt.Fprintf(out, "  %s  %d\n", formatter.Dim("ACCOUNTS "), len(snap.Children(root.ID)))
				fmt.Fprintf(out, "  %s  %d\n", formatter.Dim("FRINGES  "), len(snap.Fringes()))
				fmt.Fprint(out, formatter.FormatDiagnostics(s.diagnostics()))
				return nil
			})
		},
	}
}

func newBudgetRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Delete a budget and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			if err := app.API.Delete(cmd.Context(), domain.EntityBudget, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted budget %s\n", id)
			return nil
		},
	}
}

func newBudgetImportCmd(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create a budget from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			f, err := importer.LoadBudgetFile(args[0])
			if err != nil {
				return err
			}
			if errs := importer.ValidateBudgetFile(f); len(errs) > 0 {
				fmt.Fprint(out, formatter.FormatValidationErrors(errs))
				return fmt.Errorf("%s has %d validation errors", args[0], len(errs))
			}
			contents, err := importer.Convert(f)
			if err != nil {
				return err
			}

			if dryRun {
				var diags []domain.Inconsistency
				store, err := tree.Build(contents, func(inc domain.Inconsistency) { diags = append(diags, inc) })
				if err != nil {
					return err
				}
				root, _ := store.Node(store.Root())
				fmt.Fprint(out, formatter.FormatSummary(root))
				fmt.Fprint(out, formatter.FormatDiagnostics(diags))
				fmt.Fprintln(out, formatter.Dim("Dry run: nothing was saved."))
				return nil
			}

			b, err := app.API.ImportBudget(cmd.Context(), contents)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(out, "Imported budget %s (%s): %d rows, %d fringes\n",
				formatter.Bold(b.Label()), b.ID, len(contents.Nodes), len(contents.Fringes))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and total the file without saving")

	return cmd
}

func newBudgetExportCmd(app *App, opts *rootOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the budget as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, opts, func(s *session) error {
				f := importer.Export(s.p.Snapshot())
				if outPath == "" {
					return importer.Write(cmd.OutOrStdout(), f)
				}
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				if err := importer.Write(file, f); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", len(f.Nodes), outPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	return cmd
}
