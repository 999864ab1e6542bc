package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mmcdole/lectern/internal/dispatch"
	"github.com/mmcdole/lectern/internal/domain"
	"github.com/mmcdole/lectern/internal/viewmodel"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var timeout time.Duration
	var refresh bool

	cmd := &cobra.Command{
		Use:   "show <content-id>",
		Short: "Print the episodes of a course",
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

			snapshot, err := runShow(cmd.Context(), timeout, refresh, func(d dispatch.Dispatcher) *viewmodel.ChildContents {
				return viewmodel.NewChildContents(id, cache, client, d, ctx.logger)
			})
			if err != nil {
				return err
			}
			if snapshot.State == domain.LoadStateFailed {
				return fmt.Errorf("unable to load contents for %d (see log for details)", id)
			}

			if jsonOutput {
				return writeSnapshotJSON(cmd.OutOrStdout(), snapshot)
			}
			title := fmt.Sprintf("Content %d", id)
			if parent, ok := cache.Content(id); ok && parent.Name != "" {
				title = parent.Name
			}
			fmt.Fprintln(cmd.OutOrStdout(), title)
			fmt.Fprintln(cmd.OutOrStdout(), renderSnapshot(snapshot))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch from the server even when cached")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for contents")
	return cmd
}

// runShow starts a loop for the view model built by newVM and waits at most
// timeout for it to settle. The loop runs on parent, not on the timeout, so
// the view model is still closed on it after a timeout.
func runShow(parent context.Context, timeout time.Duration, refresh bool, newVM func(dispatch.Dispatcher) *viewmodel.ChildContents) (viewmodel.Snapshot, error) {
	loop := dispatch.NewLoop()
	go loop.Run(parent)
	defer loop.Stop()

	waitCtx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	return loadSnapshot(waitCtx, loop, newVM(loop), refresh)
}

// loadSnapshot runs vm on loop until it settles in hasData or failed
func loadSnapshot(ctx context.Context, loop *dispatch.Loop, vm *viewmodel.ChildContents, refresh bool) (viewmodel.Snapshot, error) {
	settled := make(chan viewmodel.Snapshot, 1)

	loop.Dispatch(func() {
		vm.OnChange(func(s viewmodel.Snapshot) {
			if s.State != domain.LoadStateHasData && s.State != domain.LoadStateFailed {
				return
			}
			select {
			case settled <- s:
			default:
			}
		})
		if refresh {
			vm.Refresh()
		} else {
			vm.Start()
		}
	})
	defer loop.Sync(vm.Close)

	select {
	case s := <-settled:
		return s, nil
	case <-ctx.Done():
		return viewmodel.Snapshot{}, fmt.Errorf("timed out waiting for contents: %w", ctx.Err())
	}
}

func renderSnapshot(s viewmodel.Snapshot) string {
	groupNames := make(map[domain.GroupID]string, len(s.Groups))
	for _, g := range s.Groups {
		groupNames[g.ID] = g.Name
	}

	rows := make([][]string, 0, len(s.Contents))
	for _, c := range s.Contents {
		released := ""
		if !c.ReleasedAt.IsZero() {
			released = humanize.Time(c.ReleasedAt)
		}
		access := "pro"
		if c.Free {
			access = "free"
		}
		rows = append(rows, []string{
			groupNames[c.GroupID],
			strconv.Itoa(c.Ordinal),
			c.Name,
			c.FormattedDuration(),
			access,
			released,
		})
	}

	return renderTable(
		[]string{"Group", "#", "Name", "Duration", "Access", "Released"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

type snapshotJSON struct {
	ParentID int              `json:"parent_id"`
	State    string           `json:"state"`
	Groups   []domain.Group   `json:"groups"`
	Contents []domain.Content `json:"contents"`
}

func writeSnapshotJSON(w io.Writer, s viewmodel.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshotJSON{
		ParentID: int(s.ParentID),
		State:    s.State.String(),
		Groups:   s.Groups,
		Contents: s.Contents,
	})
}
