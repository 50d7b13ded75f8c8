package device

import (
	"cmp"
	"fmt"
	"strings"
)

type CoreRangeType string

const (
	CoreRangeTypeAll   CoreRangeType = "CoreRangeTypeAll"
	CoreRangeTypeRange CoreRangeType = "CoreRangeTypeRange"
)

// CoreRange is either every core of a device or an inclusive span of core indices.
// The zero value is not valid; use CoreRangeAll, SingleCoreRange or NewCoreRange.
type CoreRange struct {
	rangeType CoreRangeType
	start     uint8
	end       uint8
}

func CoreRangeAll() CoreRange {
	return CoreRange{rangeType: CoreRangeTypeAll}
}

func SingleCoreRange(core uint8) CoreRange {
	return CoreRange{rangeType: CoreRangeTypeRange, start: core, end: core}
}

// NewCoreRange builds a fused span. start must be strictly less than end.
func NewCoreRange(start, end uint8) (CoreRange, error) {
	if start >= end {
		return CoreRange{}, fmt.Errorf("invalid core range %d-%d", start, end)
	}
	return CoreRange{rangeType: CoreRangeTypeRange, start: start, end: end}, nil
}

func (r CoreRange) Type() CoreRangeType {
	return r.rangeType
}

func (r CoreRange) IsAll() bool {
	return r.rangeType == CoreRangeTypeAll
}

// Start and End are meaningful only for a Range.
func (r CoreRange) Start() uint8 {
	return r.start
}

func (r CoreRange) End() uint8 {
	return r.end
}

// Width is the number of cores in a Range, or 0 for All.
func (r CoreRange) Width() uint8 {
	if r.IsAll() {
		return 0
	}
	return r.end - r.start + 1
}

func (r CoreRange) Contains(core uint8) bool {
	if r.IsAll() {
		return true
	}
	return r.start <= core && core <= r.end
}

func (r CoreRange) HasIntersection(other CoreRange) bool {
	if r.IsAll() || other.IsAll() {
		return true
	}
	return r.start <= other.end && other.start <= r.end
}

// Compare orders All first, then ranges by span width, then by (start, end).
func (r CoreRange) Compare(other CoreRange) int {
	switch {
	case r.IsAll() && other.IsAll():
		return 0
	case r.IsAll():
		return -1
	case other.IsAll():
		return 1
	}

	if c := cmp.Compare(r.end-r.start, other.end-other.start); c != 0 {
		return c
	}
	if c := cmp.Compare(r.start, other.start); c != 0 {
		return c
	}
	return cmp.Compare(r.end, other.end)
}

func (r CoreRange) String() string {
	switch {
	case r.IsAll():
		return "all"
	case r.start == r.end:
		return fmt.Sprintf("%d", r.start)
	default:
		return fmt.Sprintf("%d-%d", r.start, r.end)
	}
}

type DeviceMode string

const (
	DeviceModeSingle    DeviceMode = "DeviceModeSingle"
	DeviceModeFusion    DeviceMode = "DeviceModeFusion"
	DeviceModeMultiCore DeviceMode = "DeviceModeMultiCore"
)

// ParseDeviceMode accepts "single", "fusion" and "multicore" in any case.
func ParseDeviceMode(s string) (DeviceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return DeviceModeSingle, nil
	case "fusion":
		return DeviceModeFusion, nil
	case "multicore":
		return DeviceModeMultiCore, nil
	}
	return "", parseError(s, "unknown device mode")
}
