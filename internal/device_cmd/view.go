package device_cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

type CoreRange struct {
	Type  string `json:"type" yaml:"type"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

type DeviceFile struct {
	Path        string    `json:"path" yaml:"path"`
	Filename    string    `json:"filename" yaml:"filename"`
	DeviceIndex int       `json:"device_index" yaml:"device_index"`
	CoreRange   CoreRange `json:"core_range" yaml:"core_range"`
	Mode        string    `json:"mode" yaml:"mode"`
}

type Device struct {
	Arch     string       `json:"arch" yaml:"arch"`
	Dev      string       `json:"dev" yaml:"dev"`
	UUID     string       `json:"uuid" yaml:"uuid"`
	Cores    []int        `json:"cores" yaml:"cores"`
	DevFiles []DeviceFile `json:"device_files" yaml:"device_files"`
}

type Devices struct {
	Devices []Device `json:"devices" yaml:"devices"`
}

type CoreStatus struct {
	Dev      string `json:"dev" yaml:"dev"`
	Core     int    `json:"core" yaml:"core"`
	Status   string `json:"status" yaml:"status"`
	Occupant string `json:"occupant,omitempty" yaml:"occupant,omitempty"`
}

type DeviceInfo struct {
	Dev             string                  `json:"dev" yaml:"dev"`
	Arch            string                  `json:"arch" yaml:"arch"`
	Busname         string                  `json:"busname" yaml:"busname"`
	PCIDev          string                  `json:"pci_dev" yaml:"pci_dev"`
	DeviceSN        string                  `json:"device_sn" yaml:"device_sn"`
	UUID            string                  `json:"uuid" yaml:"uuid"`
	FirmwareVersion string                  `json:"firmware_version" yaml:"firmware_version"`
	DriverVersion   string                  `json:"driver_version" yaml:"driver_version"`
	Alive           *bool                   `json:"alive,omitempty" yaml:"alive,omitempty"`
	Heartbeat       *uint32                 `json:"heartbeat,omitempty" yaml:"heartbeat,omitempty"`
	NumaNode        *int                    `json:"numa_node,omitempty" yaml:"numa_node,omitempty"`
	ClockFrequency  []device.ClockFrequency `json:"clock_frequency,omitempty" yaml:"clock_frequency,omitempty"`
	AtrError        map[string]uint32       `json:"atr_error,omitempty" yaml:"atr_error,omitempty"`
}

func newDeviceFile(file device.DeviceFile) DeviceFile {
	return DeviceFile{
		Path:        file.Path(),
		Filename:    file.Filename(),
		DeviceIndex: int(file.DeviceIndex()),
		CoreRange: CoreRange{
			Type:  string(file.CoreRange().Type()),
			Start: int(file.CoreRange().Start()),
			End:   int(file.CoreRange().End()),
		},
		Mode: string(file.Mode()),
	}
}

func newDeviceFiles(files []device.DeviceFile) []DeviceFile {
	converted := make([]DeviceFile, 0, len(files))
	for _, file := range files {
		converted = append(converted, newDeviceFile(file))
	}
	return converted
}

func newDevices(devices []device.Device) Devices {
	payload := Devices{Devices: []Device{}}

	for _, dev := range devices {
		var convertedCores []int
		for _, core := range dev.Cores() {
			convertedCores = append(convertedCores, int(core))
		}

		payload.Devices = append(payload.Devices, Device{
			Arch:     dev.Arch().String(),
			Dev:      dev.Name(),
			UUID:     dev.DeviceUUID(),
			Cores:    convertedCores,
			DevFiles: newDeviceFiles(dev.DevFiles()),
		})
	}

	return payload
}

func writeStructured(out io.Writer, format string, payload interface{}) error {
	switch format {
	case outputJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case outputYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(payload); err != nil {
			return err
		}
		return encoder.Close()
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// writeTable writes tab separated rows aligned into columns.
func writeTable(out io.Writer, header []string, rows [][]string) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

func deviceFileRows(files []device.DeviceFile) [][]string {
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		rows = append(rows, []string{
			file.Filename(),
			fmt.Sprintf("npu%d", file.DeviceIndex()),
			file.CoreRange().String(),
			displayMode(file.Mode()),
			file.Path(),
		})
	}
	return rows
}

var deviceFileHeader = []string{"FILE", "DEVICE", "CORES", "MODE", "PATH"}

func displayMode(mode device.DeviceMode) string {
	return strings.TrimPrefix(string(mode), "DeviceMode")
}
