package cli

import (
	"fmt"
	"io"

	"github.com/alexanderramin/budgetcore/internal/cli/formatter"
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/alexanderramin/budgetcore/internal/placeholder"
	"github.com/spf13/cobra"
)

func newAddCmd(app *App, opts *rootOptions) *cobra.Command {
	var identifier, description string
	var quantity, rate, multiplier, actual float64
	var index int

	cmd := &cobra.Command{
		Use:   "add PARENT",
		Short: "Add an account or subaccount under PARENT",
		Long: `Add an account or subaccount under PARENT.

The row starts as a placeholder and is created once its required fields are
set: an identifier for accounts, quantity and rate for subaccounts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			var changes []domain.FieldChange
			set := func(flag string, field domain.Field, v any) {
				if cmd.Flags().Changed(flag) {
					changes = append(changes, domain.FieldChange{Field: field, New: v})
				}
			}
			set("identifier", domain.FieldIdentifier, identifier)
			set("description", domain.FieldDescription, description)
			set("quantity", domain.FieldQuantity, quantity)
			set("rate", domain.FieldRate, rate)
			set("multiplier", domain.FieldMultiplier, multiplier)
			set("actual", domain.FieldActual, actual)

			return withSession(cmd, app, opts, func(s *session) error {
				ctx := cmd.Context()
				temp, err := s.p.AddRow(ctx, parent, "", index)
				if err != nil {
					return err
				}
				if len(changes) > 0 {
					if err := s.p.Dispatch(ctx, engine.DataChange(temp, changes...)); err != nil {
						return err
					}
				}
				s.p.Wait()

				row, _ := s.p.Placeholder(temp)
				out := cmd.OutOrStdout()
				switch {
				case row.State == placeholder.Activated:
					fmt.Fprintf(out, "Created %s %s\n", row.Kind, formatter.Bold(row.RealID.String()))
				case row.LastErr != nil:
					return nil
				default:
					return fmt.Errorf("%s not created: %s", row.Kind, requirement(row.Kind))
				}
				printLevel(out, s, parent)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Identifier (account number)")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().Float64Var(&quantity, "quantity", 0, "Quantity")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Rate")
	cmd.Flags().Float64Var(&multiplier, "multiplier", 1, "Multiplier")
	cmd.Flags().Float64Var(&actual, "actual", 0, "Actual spend")
	cmd.Flags().IntVar(&index, "index", -1, "Insert position among siblings (-1 appends)")

	return cmd
}

func requirement(kind domain.NodeKind) string {
	if kind == domain.NodeAccount {
		return "an account needs --identifier"
	}
	return "a subaccount needs --quantity and --rate"
}

func newSetCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set ID FIELD VALUE",
		Short: "Set one field of an account or subaccount",
		Long: `Set one field of an account or subaccount.

FIELD is one of identifier, description, quantity, rate, multiplier, actual
or fringes. Numeric fields accept "-" to clear the value; fringes takes a
comma separated list of fringe ids.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			field := domain.Field(args[1])
			value, err := parseFieldValue(field, args[2])
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				parent, err := s.parentOf(id)
				if err != nil {
					return err
				}
				if err := s.p.Dispatch(cmd.Context(), engine.SetField(id, field, value)); err != nil {
					return err
				}
				s.p.Wait()
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s of %s\n", field, id)
				printLevel(cmd.OutOrStdout(), s, parent)
				return nil
			})
		},
	}
}

func newDeleteCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "Delete accounts or subaccounts with everything below them",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDArgs(args)
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				if err := s.p.Dispatch(cmd.Context(), engine.RowDelete(ids...)); err != nil {
					return err
				}
				s.p.Wait()
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d row(s)\n", len(ids))
				return nil
			})
		},
	}
}

// printLevel renders the rows below parent as they stand after the writes.
func printLevel(out io.Writer, s *session, parent domain.ID) {
	fmt.Fprintln(out)
	fmt.Fprint(out, formatter.FormatRows(s.p.Materialize(parent)))
}
