package device_cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/furiosa-ai/furiosa-device-api/internal/cdi"
	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

func newFindCommand(opts *rootOptions) *cobra.Command {
	var output string

	findCmd := &cobra.Command{
		Use:   "find [config]",
		Short: "Allocate device files for a device config",
		Long: `Allocate device files for a device config such as "warboy(2)*1,rngd:0:0-3".
Without an argument the config is read from the configured environment variable,
falling back to the configured default.`,
		Example: `furiosa-device find "warboy(1)*2"
furiosa-device find -o cdi "rngd(4)*1"
furiosa-device find -o mounts "warboy(2)*1"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output, outputTable, outputJSON, outputCDI, outputMounts); err != nil {
				return err
			}

			cfg, err := opts.deviceConfig(args)
			if err != nil {
				return err
			}

			ctx := opts.context(cmd.Context())
			lister := opts.lister()

			devices, err := lister.ListDevices(ctx)
			if err != nil {
				return err
			}
			withStatus, err := lister.ExpandStatus(ctx, devices)
			if err != nil {
				return err
			}

			files, err := device.FindDeviceFilesIn(cfg, withStatus)
			if err != nil {
				return err
			}
			opts.logger.Info().Str("config", cfg.String()).Int("files", len(files)).Msg("allocated device files")

			switch output {
			case outputJSON:
				return writeStructured(cmd.OutOrStdout(), outputJSON, newDeviceFiles(files))
			case outputCDI, outputMounts:
				spec, err := cdi.NewSpec(files, devices)
				if err != nil {
					return err
				}
				if output == outputMounts {
					return writeStructured(cmd.OutOrStdout(), outputJSON, cdi.FlattenEdits(spec))
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(spec)
			}
			return writeTable(cmd.OutOrStdout(), deviceFileHeader, deviceFileRows(files))
		},
	}

	findCmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json, cdi or mounts")
	return findCmd
}

func (o *rootOptions) deviceConfig(args []string) (device.DeviceConfig, error) {
	if len(args) == 1 {
		return device.ParseDeviceConfig(args[0])
	}
	return o.conf.DeviceConfig(o.logger)
}
