package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mmcdole/lectern/internal/dispatch"
	"github.com/mmcdole/lectern/internal/tui"
	"github.com/mmcdole/lectern/internal/viewmodel"
)

func newBrowseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <content-id>",
		Short: "Browse the episodes of a course interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseContentID(args[0])
			if err != nil {
				return err
			}
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			client, err := ctx.newClient()
			if err != nil {
				return err
			}

			title := fmt.Sprintf("Content %d", id)
			if parent, ok := cache.Content(id); ok && parent.Name != "" {
				title = parent.Name
			}

			queue := dispatch.NewQueue(nil)
			vm := viewmodel.NewChildContents(id, cache, client, queue, ctx.logger)
			defer vm.Close()

			model := tui.NewModel(vm, queue, title, ctx.cfg.UI.ShowGroups)
			p := tea.NewProgram(model, tea.WithAltScreen())
			tui.Bind(p, queue)

			ctx.logger.Info("starting TUI", "content_id", int(id))
			if _, err := p.Run(); err != nil {
				ctx.logger.Error("TUI error", "error", err)
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}
}
