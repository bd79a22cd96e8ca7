package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/budgetcore/internal/cli/formatter"
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/spf13/cobra"
)

func newGroupCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage row groups",
	}

	cmd.AddCommand(
		newGroupCreateCmd(app, opts),
		newGroupMembershipCmd(app, opts, "add", "Add rows to a group", engine.RowAddToGroup),
		newGroupMembershipCmd(app, opts, "remove", "Remove rows from a group", engine.RowRemoveFromGroup),
		newGroupDeleteCmd(app, opts),
	)

	return cmd
}

func newGroupCreateCmd(app *App, opts *rootOptions) *cobra.Command {
	var color string
	var rows []domain.ID

	cmd := &cobra.Command{
		Use:   "create PARENT NAME",
		Short: "Group sibling rows under PARENT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			g := &domain.Group{ParentID: parent, Name: args[1], Color: color, Children: rows}
			return withSession(cmd, app, opts, func(s *session) error {
				if err := s.p.Dispatch(cmd.Context(), engine.GroupAdded(g)); err != nil {
					return err
				}
				s.p.Wait()
				reportCreated(cmd, s, "group")
				printLevel(cmd.OutOrStdout(), s, parent)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "Hex color, e.g. #d3869b")
	cmd.Flags().Var(newIDsValue(&rows), "rows", "Comma separated member row ids")

	return cmd
}

func newGroupMembershipCmd(app *App, opts *rootOptions, use, short string, intent func(domain.ID, ...domain.ID) engine.Intent) *cobra.Command {
	return &cobra.Command{
		Use:   use + " GROUP ROW...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDArgs(args[1:])
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				g, ok := s.p.Snapshot().Group(gid)
				if !ok {
					return domain.NotFound("group", gid)
				}
				if err := s.p.Dispatch(cmd.Context(), intent(gid, ids...)); err != nil {
					return err
				}
				s.p.Wait()
				printLevel(cmd.OutOrStdout(), s, g.ParentID)
				return nil
			})
		},
	}
}

func newGroupDeleteCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete GROUP",
		Short: "Delete a group, keeping its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				if err := s.p.Dispatch(cmd.Context(), engine.GroupDelete(gid)); err != nil {
					return err
				}
				s.p.Wait()
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %s\n", gid)
				return nil
			})
		},
	}
}

// reportCreated prints the ids assigned to overlays created in this session.
func reportCreated(cmd *cobra.Command, s *session, what string) {
	for _, rowID := range s.remapped() {
		if !strings.HasPrefix(rowID, what+"-") {
			continue
		}
		id := strings.TrimPrefix(rowID, what+"-")
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", what, formatter.Bold(id))
	}
}
