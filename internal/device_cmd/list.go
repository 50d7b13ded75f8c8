package device_cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var output string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recognized NPUs and their device files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output, outputTable, outputJSON, outputYAML); err != nil {
				return err
			}

			devices, err := opts.lister().ListDevices(opts.context(cmd.Context()))
			if err != nil {
				return err
			}

			if output != outputTable {
				return writeStructured(cmd.OutOrStdout(), output, newDevices(devices))
			}

			rows := make([][]string, 0, len(devices))
			for _, d := range devices {
				files := make([]string, 0, len(d.DevFiles()))
				for _, file := range d.DevFiles() {
					files = append(files, file.Filename())
				}
				rows = append(rows, []string{
					d.Name(),
					d.Arch().String(),
					fmt.Sprint(d.CoreNum()),
					d.DeviceUUID(),
					strings.Join(files, ","),
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"NAME", "ARCH", "CORES", "UUID", "FILES"}, rows)
		},
	}

	listCmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return listCmd
}
