package cli

import (
	"fmt"
	"time"

	"github.com/alexanderramin/budgetcore/internal/cli/formatter"
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/tree"
	"github.com/spf13/cobra"
)

func newTableCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "table [PARENT]",
		Short: "Show the rows below PARENT (the budget by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, opts, func(s *session) error {
				snap := s.p.Snapshot()
				parent := snap.Root()
				if len(args) == 1 {
					id, err := domain.ParseID(args[0])
					if err != nil {
						return err
					}
					parent = id
				}
				n, ok := snap.Node(parent)
				if !ok {
					return domain.NotFound("node", parent)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, formatter.FormatSummary(n))
				fmt.Fprintln(out)
				fmt.Fprint(out, formatter.FormatRows(s.p.Materialize(parent)))
				fmt.Fprint(out, formatter.FormatDiagnostics(s.diagnostics()))
				return nil
			})
		},
	}
}

func newTreeCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the whole budget as a tree of estimated values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, opts, func(s *session) error {
				snap := s.p.Snapshot()
				fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTree(treeItems(snap)))
				return nil
			})
		},
	}
}

// treeItems flattens the store depth first for RenderTree.
func treeItems(snap *tree.Store) []formatter.TreeItem {
	root, ok := snap.Node(snap.Root())
	if !ok {
		return nil
	}
	items := []formatter.TreeItem{{
		Label:  formatter.Bold(root.Label()),
		IsLast: true,
		Detail: formatter.FormatAmount(root.Estimated()),
	}}
	var walk func(parent domain.ID, level int)
	walk = func(parent domain.ID, level int) {
		children := snap.Children(parent)
		for i, c := range children {
			label := c.Label()
			if c.Description != "" && c.Identifier != "" {
				label += " " + formatter.Dim(c.Description)
			}
			items = append(items, formatter.TreeItem{
				Label:       label,
				Level:       level,
				IsLast:      i == len(children)-1,
				Placeholder: c.IsPlaceholder,
				Detail:      formatter.FormatAmount(c.Estimated()),
			})
			walk(c.ID, level+1)
		}
	}
	walk(root.ID, 1)
	return items
}

func newSearchCmd(app *App, opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "search PARENT QUERY",
		Short: "Search the children of PARENT by identifier or description",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, app, opts, func(s *session) error {
				pn, ok := s.p.Snapshot().Node(parent)
				if !ok {
					return domain.NotFound("node", parent)
				}
				kind := domain.EntityKindFor(pn.Kind.ChildKind())

				type result struct {
					ents []domain.Entity
					err  error
				}
				done := make(chan result, 1)
				s.p.Search(cmd.Context(), kind, parent, args[1], func(ents []domain.Entity, err error) {
					done <- result{ents: ents, err: err}
				})

				var res result
				select {
				case res = <-done:
				case <-time.After(timeout):
					return fmt.Errorf("search timed out after %s", timeout)
				}
				if res.err != nil {
					return res.err
				}
				rows := make([][]string, 0, len(res.ents))
				for _, e := range res.ents {
					if e.Node == nil {
						continue
					}
					rows = append(rows, []string{e.Node.ID.String(), e.Node.Identifier, e.Node.Description})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No matches."))
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable([]string{"ID", "IDENTIFIER", "DESCRIPTION"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for results")

	return cmd
}
