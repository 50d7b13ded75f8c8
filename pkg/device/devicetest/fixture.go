// Package devicetest lays out fake device and management trees for tests.
package devicetest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

const (
	PlatformFuriosa = "FuriosaAI"
	PlatformForeign = "Xilinx"

	DefaultDeviceSN        = "WBYB0000000000000"
	DefaultFirmwareVersion = "1.6.0, c1bebfd"
	DefaultDriverVersion   = "1.0.0, 0000000"
	DefaultHeartbeat       = "42"
	DefaultPCIDev          = "000:0"
	DefaultNumaNode        = "0"
)

const atrErrorContents = `AXI Post Error: 0
AXI Fetch Error: 0
AXI Discard Error: 0
AXI Doorbell done: 0
PCIe Post Error: 0
PCIe Fetch Error: 0
PCIe Discard Error: 0
PCIe Doorbell done: 0
Device Error: 0
`

const clockContents = `ne tensor (MHz): 2000
ne dma (MHz): 1000
axi (MHz): 800
`

// Fixture is a devfs and a sysfs tree below t.TempDir(). Device files are
// regular files, so listers must use device.RegularFilePolicy.
type Fixture struct {
	t     testing.TB
	Devfs string
	Sysfs string
}

func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	root := t.TempDir()
	f := &Fixture{
		t:     t,
		Devfs: filepath.Join(root, "dev"),
		Sysfs: filepath.Join(root, "sys"),
	}
	require.NoError(t, os.MkdirAll(f.Devfs, 0755))
	require.NoError(t, os.MkdirAll(f.Sysfs, 0755))
	return f
}

// Lister returns a lister over this fixture. opts are applied last.
func (f *Fixture) Lister(opts ...device.Option) *device.Lister {
	base := []device.Option{
		device.WithDevfsRoot(f.Devfs),
		device.WithSysfsRoot(f.Sysfs),
		device.WithFileTypePolicy(device.RegularFilePolicy),
	}
	return device.NewLister(append(base, opts...)...)
}

// DeviceFileNames lists the device files the driver exposes for one device.
func DeviceFileNames(arch device.Arch, idx uint8) []string {
	names := []string{fmt.Sprintf("npu%d", idx)}
	for _, width := range arch.FusibleCounts() {
		for start := uint8(0); start+width <= arch.NumCores(); start += width {
			if width == 1 {
				names = append(names, fmt.Sprintf("npu%dpe%d", idx, start))
			} else {
				names = append(names, fmt.Sprintf("npu%dpe%d-%d", idx, start, start+width-1))
			}
		}
	}
	return names
}

// Busname is the BDF address the fixture assigns to a device.
func Busname(idx uint8) string {
	return fmt.Sprintf("0000:%02x:00.0", 0x6d+int(idx))
}

func DeviceUUID(idx uint8) string {
	return strings.Repeat(string(rune('A'+idx%26)), 8) + "-AAAA-AAAA-AAAA-AAAAAAAAAAAA"
}

// AddDevice creates every device file and management attribute of a healthy device.
func (f *Fixture) AddDevice(arch device.Arch, idx uint8) *Fixture {
	f.t.Helper()

	for _, name := range DeviceFileNames(arch, idx) {
		f.AddDeviceFile(arch, name)
	}

	attrs := map[string]string{
		"platform_type": PlatformFuriosa,
		"busname":       Busname(idx),
		"dev":           DefaultPCIDev,
		"device_sn":     DefaultDeviceSN,
		"device_uuid":   DeviceUUID(idx),
		"fw_version":    DefaultFirmwareVersion,
		"version":       DefaultDriverVersion,
		"heartbeat":     DefaultHeartbeat,
		"atr_error":     atrErrorContents,
	}
	switch arch {
	case device.ArchRngd:
		attrs["device_state"] = "good"
		attrs["npu_clocks"] = clockContents
	default:
		attrs["alive"] = "1"
		attrs["ne_clk_freq_info"] = clockContents
	}
	for name, value := range attrs {
		f.SetAttr(arch, idx, name, value)
	}

	f.write(filepath.Join(f.Sysfs, "bus", "pci", "devices", Busname(idx), "numa_node"), DefaultNumaNode)
	return f
}

func (f *Fixture) AddWarboy(indices ...uint8) *Fixture {
	for _, idx := range indices {
		f.AddDevice(device.ArchWarboy, idx)
	}
	return f
}

func (f *Fixture) AddRngd(indices ...uint8) *Fixture {
	for _, idx := range indices {
		f.AddDevice(device.ArchRngd, idx)
	}
	return f
}

// AddForeign creates device files whose management directory claims another vendor.
func (f *Fixture) AddForeign(arch device.Arch, idx uint8) *Fixture {
	f.t.Helper()

	f.AddDeviceFile(arch, fmt.Sprintf("npu%d", idx))
	f.SetAttr(arch, idx, "platform_type", PlatformForeign)
	return f
}

// AddDeviceFile creates a single entry in the architecture's devfs directory.
func (f *Fixture) AddDeviceFile(arch device.Arch, name string) string {
	f.t.Helper()

	path := filepath.Join(arch.DevfilePath(f.Devfs), name)
	f.write(path, "")
	return path
}

// SetAttr writes a management attribute, with a trailing newline like sysfs.
func (f *Fixture) SetAttr(arch device.Arch, idx uint8, name, value string) {
	f.t.Helper()

	if !strings.HasSuffix(value, "\n") {
		value += "\n"
	}
	f.write(f.AttrPath(arch, idx, name), value)
}

func (f *Fixture) RemoveAttr(arch device.Arch, idx uint8, name string) {
	f.t.Helper()

	require.NoError(f.t, os.Remove(f.AttrPath(arch, idx, name)))
}

// ReadAttr returns the raw contents of a management attribute.
func (f *Fixture) ReadAttr(arch device.Arch, idx uint8, name string) string {
	f.t.Helper()

	contents, err := os.ReadFile(f.AttrPath(arch, idx, name))
	require.NoError(f.t, err)
	return string(contents)
}

func (f *Fixture) AttrPath(arch device.Arch, idx uint8, name string) string {
	return filepath.Join(arch.ManagementDir(f.Sysfs, idx), name)
}

func (f *Fixture) write(path, contents string) {
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(f.t, os.WriteFile(path, []byte(contents), 0644))
}
