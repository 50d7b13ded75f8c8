package device

import (
	"cmp"
	"path/filepath"
)

// DeviceFile is one entry of the device file tree.
type DeviceFile struct {
	deviceIndex uint8
	coreRange   CoreRange
	path        string
	mode        DeviceMode
}

// NewDeviceFile derives the index, core range and mode of a device file from its name.
func NewDeviceFile(path string) (DeviceFile, error) {
	filename := filepath.Base(path)
	deviceIndex, cores, err := ParseIndices(filename)
	if err != nil {
		return DeviceFile{}, err
	}

	var coreRange CoreRange
	var mode DeviceMode
	switch len(cores) {
	case 0:
		coreRange, mode = CoreRangeAll(), DeviceModeMultiCore
	case 1:
		coreRange, mode = SingleCoreRange(cores[0]), DeviceModeSingle
	default:
		coreRange, err = NewCoreRange(cores[0], cores[len(cores)-1])
		if err != nil {
			return DeviceFile{}, unrecognizedFile(filename)
		}
		mode = DeviceModeFusion
	}

	return DeviceFile{
		deviceIndex: deviceIndex,
		coreRange:   coreRange,
		path:        path,
		mode:        mode,
	}, nil
}

func (f DeviceFile) DeviceIndex() uint8 {
	return f.deviceIndex
}

func (f DeviceFile) CoreRange() CoreRange {
	return f.coreRange
}

func (f DeviceFile) Path() string {
	return f.path
}

func (f DeviceFile) Filename() string {
	return filepath.Base(f.path)
}

func (f DeviceFile) Mode() DeviceMode {
	return f.mode
}

func (f DeviceFile) String() string {
	return f.Filename()
}

// Equal reports whether both files address the same cores of the same device.
// Path and mode are not compared.
func (f DeviceFile) Equal(other DeviceFile) bool {
	return f.deviceIndex == other.deviceIndex && f.coreRange == other.coreRange
}

// Compare orders device files by device index, then by core range.
func (f DeviceFile) Compare(other DeviceFile) int {
	if c := cmp.Compare(f.deviceIndex, other.deviceIndex); c != 0 {
		return c
	}
	return f.coreRange.Compare(other.coreRange)
}
