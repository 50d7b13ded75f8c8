package device_cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

func newInfoCommand(opts *rootOptions) *cobra.Command {
	var output string

	infoCmd := &cobra.Command{
		Use:     "info <index>",
		Short:   "Show static and live attributes of an NPU",
		Example: "furiosa-device info 0",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output, outputTable, outputJSON, outputYAML); err != nil {
				return err
			}

			idx, err := parseDeviceIndex(args[0])
			if err != nil {
				return err
			}

			d, err := opts.lister().GetDevice(opts.context(cmd.Context()), idx)
			if err != nil {
				return err
			}

			info, errs := newDeviceInfo(d)
			for _, attrErr := range errs {
				opts.logger.Warn().Err(attrErr).Str("device", d.Name()).Msg("couldn't read attribute")
			}

			if output != outputTable {
				err = writeStructured(cmd.OutOrStdout(), output, info)
			} else {
				err = writeTable(cmd.OutOrStdout(), []string{"ATTRIBUTE", "VALUE"}, infoRows(info))
			}
			if err != nil {
				return err
			}
			return utilerrors.NewAggregate(errs)
		},
	}

	infoCmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return infoCmd
}

// newDeviceInfo reads every attribute, leaving out the live ones that fail.
func newDeviceInfo(d device.Device) (DeviceInfo, []error) {
	info := DeviceInfo{
		Dev:             d.Name(),
		Arch:            d.Arch().String(),
		Busname:         d.Busname(),
		PCIDev:          d.PCIDev(),
		DeviceSN:        d.DeviceSN(),
		UUID:            d.DeviceUUID(),
		FirmwareVersion: d.FirmwareVersion(),
		DriverVersion:   d.DriverVersion(),
	}

	var errs []error
	if alive, err := d.Alive(); err != nil {
		errs = append(errs, err)
	} else {
		info.Alive = &alive
	}

	if heartbeat, err := d.Heartbeat(); err != nil {
		errs = append(errs, err)
	} else {
		info.Heartbeat = &heartbeat
	}

	if numa, err := d.NumaNode(); err != nil {
		errs = append(errs, err)
	} else if numa.Supported {
		id := int(numa.ID)
		info.NumaNode = &id
	}

	if clocks, err := d.ClockFrequency(); err != nil {
		errs = append(errs, err)
	} else {
		info.ClockFrequency = clocks
	}

	if atrError, err := d.AtrError(); err != nil {
		errs = append(errs, err)
	} else {
		info.AtrError = atrError
	}

	return info, errs
}

func infoRows(info DeviceInfo) [][]string {
	rows := [][]string{
		{"dev", info.Dev},
		{"arch", info.Arch},
		{"busname", info.Busname},
		{"pci_dev", info.PCIDev},
		{"device_sn", info.DeviceSN},
		{"uuid", info.UUID},
		{"firmware_version", info.FirmwareVersion},
		{"driver_version", info.DriverVersion},
	}

	if info.Alive != nil {
		rows = append(rows, []string{"alive", strconv.FormatBool(*info.Alive)})
	}
	if info.Heartbeat != nil {
		rows = append(rows, []string{"heartbeat", strconv.FormatUint(uint64(*info.Heartbeat), 10)})
	}
	if info.NumaNode != nil {
		rows = append(rows, []string{"numa_node", strconv.Itoa(*info.NumaNode)})
	}
	if len(info.ClockFrequency) > 0 {
		clocks := make([]string, 0, len(info.ClockFrequency))
		for _, clock := range info.ClockFrequency {
			clocks = append(clocks, fmt.Sprintf("%s=%d%s", clock.Name, clock.Value, clock.Unit))
		}
		rows = append(rows, []string{"clock_frequency", strings.Join(clocks, ", ")})
	}
	return rows
}
