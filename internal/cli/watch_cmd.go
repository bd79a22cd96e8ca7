package cli

import (
	"errors"
	"time"

	"github.com/alexanderramin/budgetcore/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *App, opts *rootOptions) *cobra.Command {
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "watch [PARENT]",
		Short: "Browse a budget level and follow its totals live",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.interactive() {
				return errors.New("watch needs an interactive terminal; use table instead")
			}
			return withSession(cmd, app, opts, func(s *session) error {
				parent := s.p.Root()
				if len(args) == 1 {
					id, err := domain.ParseID(args[0])
					if err != nil {
						return err
					}
					if _, ok := s.p.Snapshot().Node(id); !ok {
						return domain.NotFound("node", id)
					}
					parent = id
				}
				m := newWatchModel(s.p, parent)
				m.reload = func() error { return <-s.p.Load(cmd.Context(), s.budget) }
				m.every = every
				defer m.close()
				_, err := tea.NewProgram(m,
					tea.WithAltScreen(),
					tea.WithContext(cmd.Context()),
					tea.WithOutput(cmd.OutOrStdout()),
				).Run()
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&every, "every", 0, "Reload from storage on this interval (0 disables)")

	return cmd
}
