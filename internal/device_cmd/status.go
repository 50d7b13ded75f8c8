package device_cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var output string

	statusCmd := &cobra.Command{
		Use:     "status [index]",
		Short:   "Show whether each core is available, occupied or unavailable",
		Example: "furiosa-device status 0",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output, outputTable, outputJSON, outputYAML); err != nil {
				return err
			}

			ctx := opts.context(cmd.Context())
			lister := opts.lister()

			var devices []device.Device
			if len(args) == 1 {
				idx, err := parseDeviceIndex(args[0])
				if err != nil {
					return err
				}
				d, err := lister.GetDevice(ctx, idx)
				if err != nil {
					return err
				}
				devices = []device.Device{d}
			} else {
				var err error
				if devices, err = lister.ListDevices(ctx); err != nil {
					return err
				}
			}

			// a failing device does not hide the others
			var statuses []CoreStatus
			var errs []error
			for _, d := range devices {
				coreStatuses, err := d.StatusOfAll(ctx)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
					continue
				}
				for _, core := range d.Cores() {
					status := coreStatuses[core]
					statuses = append(statuses, CoreStatus{
						Dev:      d.Name(),
						Core:     int(core),
						Status:   string(status.Type),
						Occupant: status.Occupant,
					})
				}
			}

			if err := writeStatuses(cmd, output, statuses); err != nil {
				return err
			}
			return utilerrors.NewAggregate(errs)
		},
	}

	statusCmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return statusCmd
}

func writeStatuses(cmd *cobra.Command, output string, statuses []CoreStatus) error {
	if output != outputTable {
		if statuses == nil {
			statuses = []CoreStatus{}
		}
		return writeStructured(cmd.OutOrStdout(), output, statuses)
	}

	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{status.Dev, strconv.Itoa(status.Core), status.Status, status.Occupant})
	}
	return writeTable(cmd.OutOrStdout(), []string{"DEVICE", "CORE", "STATUS", "OCCUPANT"}, rows)
}

func parseDeviceIndex(arg string) (uint8, error) {
	idx, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid device index %q", arg)
	}
	return uint8(idx), nil
}
