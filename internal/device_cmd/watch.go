package device_cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/furiosa-ai/furiosa-device-api/internal/watcher"
)

type watchEvent struct {
	Type     string       `json:"type"`
	Dev      string       `json:"dev"`
	Arch     string       `json:"arch"`
	Statuses []CoreStatus `json:"statuses"`
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var output string

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print device additions, removals and core status changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output, outputTable, outputJSON); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(opts.context(cmd.Context()), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
			defer stop()

			return runWatch(ctx, cmd, opts, output)
		},
	}

	watchCmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return watchCmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *rootOptions, output string) error {
	w := watcher.New(opts.lister(), opts.conf.Watch.ResyncInterval)

	events := make(chan watcher.Event)
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Run(ctx, events)
		close(events)
	}()

	encoder := json.NewEncoder(cmd.OutOrStdout())
	for event := range events {
		view := newWatchEvent(event)

		var err error
		if output == outputJSON {
			err = encoder.Encode(view)
		} else {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", view.Type, view.Dev, view.Arch, summarizeStatuses(view.Statuses))
		}
		if err != nil {
			return err
		}
	}
	return <-errChan
}

func newWatchEvent(event watcher.Event) watchEvent {
	view := watchEvent{
		Type: string(event.Type),
		Dev:  event.Device.Name(),
		Arch: event.Device.Arch().String(),
	}
	for _, core := range event.Device.Cores() {
		status := event.Statuses[core]
		view.Statuses = append(view.Statuses, CoreStatus{
			Dev:      view.Dev,
			Core:     int(core),
			Status:   string(status.Type),
			Occupant: status.Occupant,
		})
	}
	return view
}

func summarizeStatuses(statuses []CoreStatus) string {
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%d:%s", status.Core, status.Status))
	}
	return strings.Join(parts, " ")
}
