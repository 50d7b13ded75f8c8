package device

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Management attribute files.
const (
	mgmtFileAlive          = "alive"
	mgmtFileAtrError       = "atr_error"
	mgmtFileBusname        = "busname"
	mgmtFileDev            = "dev"
	mgmtFileDeviceSN       = "device_sn"
	mgmtFileDeviceState    = "device_state"
	mgmtFileDeviceUUID     = "device_uuid"
	mgmtFileFWVersion      = "fw_version"
	mgmtFileHeartbeat      = "heartbeat"
	mgmtFileNeClkFreqInfo  = "ne_clk_freq_info"
	mgmtFileNpuClocks      = "npu_clocks"
	mgmtFileVersion        = "version"
	ctrlFileDeviceLed      = "device_led"
	ctrlFileNeClock        = "ne_clock"
	ctrlFileNeDtmPolicy    = "ne_dtm_policy"
	ctrlFilePerfLevel      = "performance_level"
	ctrlFilePerfMode       = "performance_mode"
	perfRegsFile           = "perf_regs"
	numaNodeFile           = "numa_node"
	clockFrequencyPattern  = `(?P<name>(\w| )+)\((?P<unit>.*)\): (?P<value>\d+)`
	subExpKeyClockName     = "name"
	subExpKeyClockUnit     = "unit"
	subExpKeyClockValue    = "value"
	numaNodeUnsupportedRaw = -1
)

// staticMgmtFiles are read once when a device is assembled.
var staticMgmtFiles = []string{
	mgmtFileBusname,
	mgmtFileDev,
	mgmtFileDeviceSN,
	mgmtFileDeviceUUID,
	mgmtFileFWVersion,
	mgmtFileVersion,
}

var (
	clockFrequencyRegExp = regexp.MustCompile(clockFrequencyPattern)
)

type Toggle uint8

const (
	ToggleDisable Toggle = 0
	ToggleEnable  Toggle = 1
)

type DtmPolicy uint8

const (
	DtmPolicyConservative DtmPolicy = 0
	DtmPolicyOnDemand     DtmPolicy = 1
)

// PerfLevel ranges from 0 to 15.
type PerfLevel uint8

const MaxPerfLevel PerfLevel = 15

type PerfMode uint8

const (
	PerfModeLow     PerfMode = 0
	PerfModeHalf    PerfMode = 1
	PerfModeNormal1 PerfMode = 2
	PerfModeNormal2 PerfMode = 3
	PerfModeFull1   PerfMode = 4
	PerfModeFull2   PerfMode = 5
)

// ClockFrequency is one line of a clock frequency attribute, e.g. "ne tensor (MHz): 2000".
type ClockFrequency struct {
	Name  string `json:"name" yaml:"name"`
	Unit  string `json:"unit" yaml:"unit"`
	Value uint32 `json:"value" yaml:"value"`
}

// NumaNode is the NUMA node of a device; Supported is false when the platform reports none.
type NumaNode struct {
	ID        uint
	Supported bool
}

func readSysfsString(path string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", fromIOError(err)
	}
	return strings.TrimSpace(string(contents)), nil
}

func writeSysfsString(path string, value string) error {
	return fromIOError(os.WriteFile(path, []byte(value), 0644))
}

func parseZeroOrOne(contents string) (bool, bool) {
	switch strings.TrimSpace(contents) {
	case "0":
		return false, true
	case "1":
		return true, true
	}
	return false, false
}

func parseHeartbeat(contents string) (uint32, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(contents), 10, 32)
	if err != nil {
		return 0, unexpectedValue("Bad heartbeat value: %s", contents)
	}
	return uint32(value), nil
}

// buildAtrErrorMap reads "Key Name: value" lines into {"key_name": value}.
// Lines whose value is not an unsigned 32-bit integer are skipped.
func buildAtrErrorMap(contents string) map[string]uint32 {
	errorMap := map[string]uint32{}

	scanner := bufio.NewScanner(strings.NewReader(strings.TrimSpace(contents)))
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !found {
			continue
		}

		parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil {
			continue
		}

		key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		errorMap[key] = uint32(parsed)
	}

	return errorMap
}

func parseClockFrequency(line string) (ClockFrequency, bool) {
	matches := clockFrequencyRegExp.FindStringSubmatch(line)
	if matches == nil {
		return ClockFrequency{}, false
	}

	namedMatches := map[string]string{}
	for i, subExp := range clockFrequencyRegExp.SubexpNames() {
		if subExp == "" {
			continue
		}
		namedMatches[subExp] = matches[i]
	}

	value, err := strconv.ParseUint(strings.TrimSpace(namedMatches[subExpKeyClockValue]), 10, 32)
	if err != nil {
		return ClockFrequency{}, false
	}

	return ClockFrequency{
		Name:  strings.TrimSpace(namedMatches[subExpKeyClockName]),
		Unit:  strings.TrimSpace(namedMatches[subExpKeyClockUnit]),
		Value: uint32(value),
	}, true
}

func parseClockFrequencies(contents string) []ClockFrequency {
	var frequencies []ClockFrequency
	for _, line := range strings.Split(contents, "\n") {
		if freq, ok := parseClockFrequency(line); ok {
			frequencies = append(frequencies, freq)
		}
	}
	return frequencies
}

func numaNodePath(sysfs, busname string) string {
	return filepath.Join(sysfs, "bus", "pci", "devices", strings.TrimSpace(busname), numaNodeFile)
}

func parseNumaNode(contents string) (NumaNode, error) {
	id, err := strconv.Atoi(strings.TrimSpace(contents))
	if err != nil {
		return NumaNode{}, unexpectedValue("Bad numa node value: %s", contents)
	}

	switch {
	case id >= 0:
		return NumaNode{ID: uint(id), Supported: true}, nil
	case id == numaNodeUnsupportedRaw:
		return NumaNode{}, nil
	}
	return NumaNode{}, unexpectedValue("Unexpected numa node id: %d", id)
}
