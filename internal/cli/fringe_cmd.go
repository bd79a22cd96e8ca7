package cli

import (
	"fmt"

	"github.com/alexanderramin/budgetcore/internal/cli/formatter"
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/spf13/cobra"
)

func newFringeCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fringe",
		Short: "Manage fringes",
	}

	cmd.AddCommand(
		newFringeListCmd(app, opts),
		newFringeAddCmd(app, opts),
		newFringeSetCmd(app, opts),
		newFringeAttachCmd(app, opts),
		newFringeDeleteCmd(app, opts),
	)

	return cmd
}

func newFringeListCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the fringes of a budget",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, opts, func(s *session) error {
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatFringes(s.p.Snapshot().Fringes()))
				return nil
			})
		},
	}
}

func newFringeAddCmd(app *App, opts *rootOptions) *cobra.Command {
	var unit, color string
	var rate, cutoff float64

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a fringe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := parseUnit(unit)
			if err != nil {
				return err
			}
			f := &domain.Fringe{Name: args[0], Color: color, Unit: u, Rate: domain.Float(rate)}
			if cmd.Flags().Changed("cutoff") {
				f.Cutoff = domain.Float(cutoff)
			}
			return withSession(cmd, app, opts, func(s *session) error {
				before := fringeIDs(s)
				if err := s.p.Dispatch(cmd.Context(), engine.FringeAdded(f)); err != nil {
					return err
				}
				s.p.Wait()
				for _, fr := range s.p.Snapshot().Fringes() {
					if !fr.ID.IsTemp() && !before[fr.ID] {
						fmt.Fprintf(cmd.OutOrStdout(), "Created fringe %s %s\n", formatter.Bold(fr.Name), fr.ID)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&unit, "unit", string(domain.UnitPercent), "Unit (percent|flat)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Rate; a fraction for percent fringes")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "Cap on the nominal value a percent fringe applies to")
	cmd.Flags().StringVar(&color, "color", "", "Hex color")
	_ = cmd.MarkFlagRequired("rate")

	return cmd
}

func fringeIDs(s *session) map[domain.ID]bool {
	out := make(map[domain.ID]bool)
	for _, f := range s.p.Snapshot().Fringes() {
		out[f.ID] = true
	}
	return out
}

func newFringeSetCmd(app *App, opts *rootOptions) *cobra.Command {
	var name, unit, color string
	var rate, cutoff float64

	cmd := &cobra.Command{
		Use:   "set FRINGE",
		Short: "Change a fringe; every node using it is recomputed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				cur, ok := s.p.Snapshot().Fringe(id)
				if !ok {
					return domain.NotFound("fringe", id)
				}
				f := cur.Clone()
				flags := cmd.Flags()
				if flags.Changed("name") {
					f.Name = name
				}
				if flags.Changed("color") {
					f.Color = color
				}
				if flags.Changed("unit") {
					if f.Unit, err = parseUnit(unit); err != nil {
						return err
					}
				}
				if flags.Changed("rate") {
					f.Rate = domain.Float(rate)
				}
				if flags.Changed("cutoff") {
					f.Cutoff = nil
					if cutoff > 0 {
						f.Cutoff = domain.Float(cutoff)
					}
				}
				if err := s.p.Dispatch(cmd.Context(), engine.FringeUpdated(f)); err != nil {
					return err
				}
				s.p.Wait()
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatFringes(s.p.Snapshot().Fringes()))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit (percent|flat)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Rate")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "Cutoff; 0 removes it")
	cmd.Flags().StringVar(&color, "color", "", "Hex color")

	return cmd
}

func newFringeAttachCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attach NODE FRINGE...",
		Short: "Replace the fringes applied to a subaccount",
		Long: `Replace the fringes applied to a subaccount.

Pass "-" as the only FRINGE to detach every fringe.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			fringes := []domain.ID{}
			if !(len(args) == 2 && args[1] == "-") {
				if fringes, err = parseIDArgs(args[1:]); err != nil {
					return err
				}
			}
			return withSession(cmd, app, opts, func(s *session) error {
				parent, err := s.parentOf(id)
				if err != nil {
					return err
				}
				if err := s.p.Dispatch(cmd.Context(), engine.SetField(id, domain.FieldFringes, fringes)); err != nil {
					return err
				}
				s.p.Wait()
				printLevel(cmd.OutOrStdout(), s, parent)
				return nil
			})
		},
	}
}

func newFringeDeleteCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete FRINGE",
		Short: "Delete a fringe and detach it from every node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				if err := s.p.Dispatch(cmd.Context(), engine.FringeDelete(id)); err != nil {
					return err
				}
				s.p.Wait()
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted fringe %s\n", id)
				return nil
			})
		},
	}
}
