package device_cmd

import (
	"github.com/spf13/cobra"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

func newGetCommand(opts *rootOptions) *cobra.Command {
	var output string

	getCmd := &cobra.Command{
		Use:     "get <name>",
		Short:   "Describe a single device file such as npu0pe0-1",
		Example: "furiosa-device get npu0pe0",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output, outputTable, outputJSON, outputYAML); err != nil {
				return err
			}

			file, err := opts.lister().GetDeviceFile(opts.context(cmd.Context()), args[0])
			if err != nil {
				return err
			}

			if output != outputTable {
				return writeStructured(cmd.OutOrStdout(), output, newDeviceFile(file))
			}
			return writeTable(cmd.OutOrStdout(), deviceFileHeader, deviceFileRows([]device.DeviceFile{file}))
		},
	}

	getCmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return getCmd
}
