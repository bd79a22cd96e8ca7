package cli

import (
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/spf13/cobra"
)

func newMarkupCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markup",
		Short: "Manage markups",
	}

	cmd.AddCommand(
		newMarkupAddCmd(app, opts),
		newMarkupSetCmd(app, opts),
		newMarkupDeleteCmd(app, opts),
	)

	return cmd
}

func newMarkupAddCmd(app *App, opts *rootOptions) *cobra.Command {
	var identifier, description, unit string
	var rows []domain.ID
	var rate float64

	cmd := &cobra.Command{
		Use:   "add PARENT",
		Short: "Attach a markup at the level below PARENT",
		Long: `Attach a markup at the level below PARENT.

A flat markup adds --rate once. A percent markup adds --rate times the
estimated value of the rows listed in --rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			u, err := parseUnit(unit)
			if err != nil {
				return err
			}
			m := &domain.Markup{
				ParentID:    parent,
				Identifier:  identifier,
				Description: description,
				Unit:        u,
				Rate:        domain.Float(rate),
				Children:    rows,
			}
			if err := m.Validate(); err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				if err := s.p.Dispatch(cmd.Context(), engine.MarkupAdded(m)); err != nil {
					return err
				}
				s.p.Wait()
				reportCreated(cmd, s, "markup")
				printLevel(cmd.OutOrStdout(), s, parent)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Identifier")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&unit, "unit", string(domain.UnitPercent), "Unit (percent|flat)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Rate; a fraction for percent markups")
	cmd.Flags().Var(newIDsValue(&rows), "rows", "Comma separated sibling row ids (percent only)")
	_ = cmd.MarkFlagRequired("rate")

	return cmd
}

func newMarkupSetCmd(app *App, opts *rootOptions) *cobra.Command {
	var identifier, description, unit string
	var rows []domain.ID
	var rate, actual float64

	cmd := &cobra.Command{
		Use:   "set MARKUP",
		Short: "Change a markup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				cur, ok := s.p.Snapshot().Markup(id)
				if !ok {
					return domain.NotFound("markup", id)
				}
				m := cur.Clone()
				flags := cmd.Flags()
				if flags.Changed("identifier") {
					m.Identifier = identifier
				}
				if flags.Changed("description") {
					m.Description = description
				}
				if flags.Changed("unit") {
					if m.Unit, err = parseUnit(unit); err != nil {
						return err
					}
					if m.Unit == domain.UnitFlat {
						m.Children = nil
					}
				}
				if flags.Changed("rate") {
					m.Rate = domain.Float(rate)
				}
				if flags.Changed("actual") {
					m.Actual = actual
				}
				if flags.Changed("rows") {
					m.Children = rows
				}
				if err := s.p.Dispatch(cmd.Context(), engine.MarkupUpdated(m)); err != nil {
					return err
				}
				s.p.Wait()
				printLevel(cmd.OutOrStdout(), s, m.ParentID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Identifier")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit (percent|flat)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Rate")
	cmd.Flags().Float64Var(&actual, "actual", 0, "Actual spend")
	cmd.Flags().Var(newIDsValue(&rows), "rows", "Comma separated sibling row ids")

	return cmd
}

func newMarkupDeleteCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete MARKUP",
		Short: "Delete a markup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				if err := s.p.Dispatch(cmd.Context(), engine.MarkupDelete(id)); err != nil {
					return err
				}
				s.p.Wait()
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted markup %s\n", id)
				return nil
			})
		},
	}
}
