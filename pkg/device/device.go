package device

import (
	"fmt"
	"path/filepath"
	"slices"
)

// Device is one physical NPU as seen at enumeration time. It is never mutated;
// list the devices again to observe changes.
type Device struct {
	index  uint8
	devfs  string
	reader mgmtReader
	prober Prober
	cores  []uint8
	files  []DeviceFile
}

// assembleDevice builds a Device from the canonical paths of its device files.
// The platform type must already have been confirmed by the caller.
func assembleDevice(arch Arch, idx uint8, paths []string, devfs, sysfs string, prober Prober) (Device, error) {
	reader, err := newMgmtReader(arch, idx, sysfs)
	if err != nil {
		return Device{}, err
	}

	coreSet := map[uint8]struct{}{}
	files := make([]DeviceFile, 0, len(paths))
	for _, path := range paths {
		file, err := NewDeviceFile(path)
		if err != nil {
			return Device{}, err
		}

		_, indices, err := ParseIndices(file.Filename())
		if err != nil {
			return Device{}, err
		}
		for _, core := range indices {
			coreSet[core] = struct{}{}
		}
		files = append(files, file)
	}

	cores := make([]uint8, 0, len(coreSet))
	for core := range coreSet {
		cores = append(cores, core)
	}
	slices.Sort(cores)
	slices.SortStableFunc(files, func(a, b DeviceFile) int {
		return a.CoreRange().Compare(b.CoreRange())
	})

	return Device{
		index:  idx,
		devfs:  devfs,
		reader: reader,
		prober: prober,
		cores:  cores,
		files:  files,
	}, nil
}

func (d Device) DeviceIndex() uint8 {
	return d.index
}

func (d Device) Arch() Arch {
	return d.reader.arch()
}

// Name is the short name of the device, e.g. npu0.
func (d Device) Name() string {
	return fmtDeviceName(d.index)
}

// DevfilePath is the path of the device file spanning every core.
func (d Device) DevfilePath() string {
	return filepath.Join(d.Arch().DevfilePath(d.devfs), d.Name())
}

// Cores returns the sorted core indices covered by the device files.
func (d Device) Cores() []uint8 {
	return slices.Clone(d.cores)
}

func (d Device) CoreNum() uint8 {
	return uint8(len(d.cores))
}

// DevFiles returns the device files sorted by core range.
func (d Device) DevFiles() []DeviceFile {
	return slices.Clone(d.files)
}

// ManagementDir is the sysfs directory this device's attributes are read from.
func (d Device) ManagementDir() string {
	return d.reader.mgmtRoot()
}

func (d Device) Busname() string {
	return d.reader.cached(mgmtFileBusname)
}

func (d Device) PCIDev() string {
	return d.reader.cached(mgmtFileDev)
}

func (d Device) DeviceSN() string {
	return d.reader.cached(mgmtFileDeviceSN)
}

func (d Device) DeviceUUID() string {
	return d.reader.cached(mgmtFileDeviceUUID)
}

func (d Device) FirmwareVersion() string {
	return d.reader.cached(mgmtFileFWVersion)
}

func (d Device) DriverVersion() string {
	return d.reader.cached(mgmtFileVersion)
}

// PCIBusID returns the bus part of the device's BDF address.
func (d Device) PCIBusID() (string, error) {
	return parseBusIDFromBDF(d.Busname())
}

func (d Device) Alive() (bool, error) {
	return d.reader.alive()
}

func (d Device) AtrError() (map[string]uint32, error) {
	return d.reader.atrError()
}

func (d Device) Heartbeat() (uint32, error) {
	return d.reader.heartbeat()
}

func (d Device) ClockFrequency() ([]ClockFrequency, error) {
	return d.reader.clockFrequency()
}

// NumaNode is resolved on first use and remembered for the lifetime of this Device.
func (d Device) NumaNode() (NumaNode, error) {
	return d.reader.numaNode()
}

func (d Device) CtrlDeviceLed(led0, led1, led2 bool) error {
	return d.reader.ctrlDeviceLed(led0, led1, led2)
}

func (d Device) CtrlNeClock(toggle Toggle) error {
	return d.reader.ctrlNeClock(toggle)
}

func (d Device) CtrlNeDtmPolicy(policy DtmPolicy) error {
	return d.reader.ctrlNeDtmPolicy(policy)
}

func (d Device) CtrlPerformanceLevel(level PerfLevel) error {
	return d.reader.ctrlPerformanceLevel(level)
}

func (d Device) CtrlPerformanceMode(mode PerfMode) error {
	return d.reader.ctrlPerformanceMode(mode)
}

// PerformanceCounterPath locates the register dump of a device file for a
// performance counter reader.
func (d Device) PerformanceCounterPath(file DeviceFile) (string, error) {
	return d.reader.performanceCounterPath(file)
}

// Equal compares index, architecture, cores and device files.
func (d Device) Equal(other Device) bool {
	return d.index == other.index &&
		d.Arch() == other.Arch() &&
		slices.Equal(d.cores, other.cores) &&
		slices.Equal(d.files, other.files)
}

func (d Device) String() string {
	return d.Name()
}

func fmtDeviceName(idx uint8) string {
	return fmt.Sprintf("npu%d", idx)
}
