package device

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
)

// mgmtReader is the per-architecture view over a device's management directory.
// Implementations are warboyReader and rngdReader; newMgmtReader is the only constructor.
type mgmtReader interface {
	arch() Arch
	mgmtRoot() string
	cached(file string) string

	alive() (bool, error)
	atrError() (map[string]uint32, error)
	heartbeat() (uint32, error)
	clockFrequency() ([]ClockFrequency, error)
	numaNode() (NumaNode, error)

	ctrlDeviceLed(led0, led1, led2 bool) error
	ctrlNeClock(toggle Toggle) error
	ctrlNeDtmPolicy(policy DtmPolicy) error
	ctrlPerformanceLevel(level PerfLevel) error
	ctrlPerformanceMode(mode PerfMode) error

	performanceCounterPath(file DeviceFile) (string, error)
}

var _ mgmtReader = (*warboyReader)(nil)
var _ mgmtReader = (*rngdReader)(nil)

func newMgmtReader(arch Arch, idx uint8, sysfs string) (mgmtReader, error) {
	base, err := newMgmtBase(arch, idx, sysfs)
	if err != nil {
		return nil, err
	}

	switch arch {
	case ArchWarboy:
		return &warboyReader{mgmtBase: base}, nil
	case ArchRngd:
		return &rngdReader{mgmtBase: base}, nil
	}
	return nil, unknownArch(string(arch))
}

// mgmtBase holds what both architectures share: the static attribute cache and
// the lazily resolved NUMA node.
type mgmtBase struct {
	archKind Arch
	sysfs    string
	root     string
	cache    map[string]string

	numaOnce sync.Once
	numa     NumaNode
	numaErr  error
}

func newMgmtBase(arch Arch, idx uint8, sysfs string) (*mgmtBase, error) {
	root := arch.ManagementDir(sysfs, idx)
	cache := make(map[string]string, len(staticMgmtFiles))
	for _, file := range staticMgmtFiles {
		value, err := readSysfsString(filepath.Join(root, file))
		if err != nil {
			return nil, err
		}
		cache[file] = value
	}

	return &mgmtBase{
		archKind: arch,
		sysfs:    sysfs,
		root:     root,
		cache:    cache,
	}, nil
}

func (m *mgmtBase) arch() Arch {
	return m.archKind
}

func (m *mgmtBase) mgmtRoot() string {
	return m.root
}

func (m *mgmtBase) cached(file string) string {
	return m.cache[file]
}

func (m *mgmtBase) read(file string) (string, error) {
	return readSysfsString(filepath.Join(m.root, file))
}

func (m *mgmtBase) write(file string, value string) error {
	return writeSysfsString(filepath.Join(m.root, file), value)
}

func (m *mgmtBase) atrError() (map[string]uint32, error) {
	contents, err := m.read(mgmtFileAtrError)
	if err != nil {
		return nil, err
	}
	return buildAtrErrorMap(contents), nil
}

func (m *mgmtBase) heartbeat() (uint32, error) {
	contents, err := m.read(mgmtFileHeartbeat)
	if err != nil {
		return 0, err
	}
	return parseHeartbeat(contents)
}

func (m *mgmtBase) numaNode() (NumaNode, error) {
	m.numaOnce.Do(func() {
		var contents string
		contents, m.numaErr = readSysfsString(numaNodePath(m.sysfs, m.cache[mgmtFileBusname]))
		if m.numaErr != nil {
			return
		}
		m.numa, m.numaErr = parseNumaNode(contents)
	})
	return m.numa, m.numaErr
}

type warboyReader struct {
	*mgmtBase
}

func (w *warboyReader) alive() (bool, error) {
	contents, err := w.read(mgmtFileAlive)
	if err != nil {
		return false, err
	}

	alive, ok := parseZeroOrOne(contents)
	if !ok {
		return false, unexpectedValue("Bad alive value: %s (only 0 or 1 expected)", contents)
	}
	return alive, nil
}

func (w *warboyReader) clockFrequency() ([]ClockFrequency, error) {
	contents, err := w.read(mgmtFileNeClkFreqInfo)
	if err != nil {
		return nil, err
	}
	return parseClockFrequencies(contents), nil
}

func (w *warboyReader) ctrlDeviceLed(led0, led1, led2 bool) error {
	value := boolToInt(led0) + boolToInt(led1)<<1 + boolToInt(led2)<<2
	return w.write(ctrlFileDeviceLed, strconv.Itoa(value))
}

func (w *warboyReader) ctrlNeClock(toggle Toggle) error {
	return w.write(ctrlFileNeClock, strconv.Itoa(int(toggle)))
}

func (w *warboyReader) ctrlNeDtmPolicy(policy DtmPolicy) error {
	return w.write(ctrlFileNeDtmPolicy, strconv.Itoa(int(policy)))
}

func (w *warboyReader) ctrlPerformanceLevel(level PerfLevel) error {
	if level > MaxPerfLevel {
		return unexpectedValue("Bad performance level: %d (0 to %d expected)", level, MaxPerfLevel)
	}
	return w.write(ctrlFilePerfLevel, strconv.Itoa(int(level)))
}

func (w *warboyReader) ctrlPerformanceMode(mode PerfMode) error {
	if mode > PerfModeFull2 {
		return unexpectedValue("Bad performance mode: %d", mode)
	}
	return w.write(ctrlFilePerfMode, strconv.Itoa(int(mode)))
}

func (w *warboyReader) performanceCounterPath(file DeviceFile) (string, error) {
	return filepath.Join(w.sysfs, "class", "npu_mgmt", file.Filename(), perfRegsFile), nil
}

// rngdStateGood is the device_state of a healthy rngd card. Any other state is not alive.
const rngdStateGood = "good"

// rngdReader reports liveness through device_state and does not expose control files yet.
type rngdReader struct {
	*mgmtBase
}

func (r *rngdReader) alive() (bool, error) {
	contents, err := r.read(mgmtFileDeviceState)
	if err != nil {
		return false, err
	}
	return contents == rngdStateGood, nil
}

func (r *rngdReader) clockFrequency() ([]ClockFrequency, error) {
	contents, err := r.read(mgmtFileNpuClocks)
	if err != nil {
		return nil, err
	}
	return parseClockFrequencies(contents), nil
}

func (r *rngdReader) ctrlDeviceLed(bool, bool, bool) error {
	return unsupported(r.archKind, ctrlFileDeviceLed)
}

func (r *rngdReader) ctrlNeClock(Toggle) error {
	return unsupported(r.archKind, ctrlFileNeClock)
}

func (r *rngdReader) ctrlNeDtmPolicy(DtmPolicy) error {
	return unsupported(r.archKind, ctrlFileNeDtmPolicy)
}

func (r *rngdReader) ctrlPerformanceLevel(PerfLevel) error {
	return unsupported(r.archKind, ctrlFilePerfLevel)
}

func (r *rngdReader) ctrlPerformanceMode(PerfMode) error {
	return unsupported(r.archKind, ctrlFilePerfMode)
}

func (r *rngdReader) performanceCounterPath(DeviceFile) (string, error) {
	return "", unsupported(r.archKind, fmt.Sprintf("%s reader", perfRegsFile))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
