package device

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	namedConfigPattern   = `^(?:(?P<arch>[A-Za-z][A-Za-z0-9]*):)?(?P<device_id>\d+):(?P<start_core>\d+)(?:-(?P<end_core>\d+))?$`
	unnamedConfigPattern = `^(?P<arch>[A-Za-z][A-Za-z0-9]*)(?:\((?P<core_num>\d+)\))?\*(?P<count>\d+)$`

	subExpKeyArch    = "arch"
	subExpKeyCoreNum = "core_num"
	subExpKeyCount   = "count"

	configSeparator = ","
)

var (
	namedConfigRegExp   = regexp.MustCompile(namedConfigPattern)
	unnamedConfigRegExp = regexp.MustCompile(unnamedConfigPattern)
)

// Count is the cardinality of an unnamed request: a finite number of units or
// every unit that is available.
type Count struct {
	all   bool
	value uint8
}

func FiniteCount(n uint8) Count {
	return Count{value: n}
}

// AllCount requests every available unit. It has no textual form that parses back.
func AllCount() Count {
	return Count{all: true}
}

func (c Count) IsAll() bool {
	return c.all
}

// Value is meaningful only when IsAll is false.
func (c Count) Value() uint8 {
	return c.value
}

func (c Count) String() string {
	if c.all {
		return "all"
	}
	return strconv.Itoa(int(c.value))
}

// Config is one clause of a DeviceConfig. A named clause asks for one exact
// device file; an unnamed clause asks for count units of coreNum fused cores.
type Config struct {
	named       bool
	arch        Arch
	deviceIndex uint8
	coreRange   CoreRange
	coreNum     uint8
	count       Count
}

// NamedConfig selects exactly one device file. An empty arch matches any architecture.
func NamedConfig(arch Arch, deviceIndex uint8, coreRange CoreRange) Config {
	return Config{
		named:       true,
		arch:        arch,
		deviceIndex: deviceIndex,
		coreRange:   coreRange,
	}
}

func UnnamedConfig(arch Arch, coreNum uint8, count Count) Config {
	return Config{
		arch:    arch,
		coreNum: coreNum,
		count:   count,
	}
}

func (c Config) IsNamed() bool {
	return c.named
}

func (c Config) Arch() Arch {
	return c.arch
}

// Fit reports whether file of a device of the given arch satisfies one unit of this clause.
func (c Config) Fit(arch Arch, file DeviceFile) bool {
	if c.named {
		return (c.arch == "" || c.arch == arch) &&
			file.DeviceIndex() == c.deviceIndex &&
			file.CoreRange() == c.coreRange
	}

	r := file.CoreRange()
	return c.arch == arch && !r.IsAll() && r.Width() == c.coreNum
}

func (c Config) Count() Count {
	if c.named {
		return FiniteCount(1)
	}
	return c.count
}

func (c Config) String() string {
	if c.named {
		if c.arch == "" {
			return fmt.Sprintf("%d:%s", c.deviceIndex, c.coreRange)
		}
		return fmt.Sprintf("%s:%d:%s", c.arch, c.deviceIndex, c.coreRange)
	}

	if c.coreNum == 0 {
		return fmt.Sprintf("%s*%s", c.arch, c.count)
	}
	return fmt.Sprintf("%s(%d)*%s", c.arch, c.coreNum, c.count)
}

// ParseConfig parses a single clause, e.g. "warboy:0:0-1", "0:1" or "rngd(4)*2".
func ParseConfig(s string) (Config, error) {
	s = strings.TrimSpace(s)
	if matches := namedConfigRegExp.FindStringSubmatch(s); matches != nil {
		return parseNamedConfig(s, subMatches(namedConfigRegExp, matches))
	}
	if matches := unnamedConfigRegExp.FindStringSubmatch(s); matches != nil {
		return parseUnnamedConfig(s, subMatches(unnamedConfigRegExp, matches))
	}
	return Config{}, parseError(s, "expected <arch>:<index>:<cores> or <arch>(<cores>)*<count>")
}

func parseNamedConfig(s string, m map[string]string) (Config, error) {
	var arch Arch
	if token := m[subExpKeyArch]; token != "" {
		var err error
		if arch, err = ParseArch(token); err != nil {
			return Config{}, parseError(s, err)
		}
	}

	deviceIndex, err := parseConfigNumber(s, m[subExpKeyDeviceID])
	if err != nil {
		return Config{}, err
	}
	start, err := parseConfigNumber(s, m[subExpKeyStartCore])
	if err != nil {
		return Config{}, err
	}

	coreRange := SingleCoreRange(start)
	if end := m[subExpKeyEndCore]; end != "" {
		endCore, err := parseConfigNumber(s, end)
		if err != nil {
			return Config{}, err
		}
		if coreRange, err = NewCoreRange(start, endCore); err != nil {
			return Config{}, parseError(s, err)
		}
	}

	return NamedConfig(arch, deviceIndex, coreRange), nil
}

func parseUnnamedConfig(s string, m map[string]string) (Config, error) {
	arch, err := ParseArch(m[subExpKeyArch])
	if err != nil {
		return Config{}, parseError(s, err)
	}

	coreNum := uint8(1)
	if token := m[subExpKeyCoreNum]; token != "" {
		if coreNum, err = parseConfigNumber(s, token); err != nil {
			return Config{}, err
		}
	}
	if !arch.IsFusibleCount(coreNum) {
		return Config{}, parseError(s, fmt.Sprintf("%d cores cannot be fused on %s", coreNum, arch))
	}

	count, err := parseConfigNumber(s, m[subExpKeyCount])
	if err != nil {
		return Config{}, err
	}
	if count == 0 {
		return Config{}, parseError(s, "count must be positive")
	}

	return UnnamedConfig(arch, coreNum, FiniteCount(count)), nil
}

func parseConfigNumber(s, digits string) (uint8, error) {
	n, err := strconv.ParseUint(digits, 10, 8)
	if err != nil {
		return 0, parseError(s, err)
	}
	return uint8(n), nil
}

func subMatches(re *regexp.Regexp, matches []string) map[string]string {
	namedMatches := map[string]string{}
	for i, subExp := range re.SubexpNames() {
		if subExp == "" {
			continue
		}
		namedMatches[subExp] = matches[i]
	}
	return namedMatches
}

// DeviceConfig is an ordered list of clauses, named clauses first.
type DeviceConfig struct {
	cfgs []Config
}

// NewDeviceConfig orders the given clauses the same way ParseDeviceConfig does.
func NewDeviceConfig(cfgs ...Config) DeviceConfig {
	sorted := slices.Clone(cfgs)
	slices.SortStableFunc(sorted, func(a, b Config) int {
		switch {
		case a.named == b.named:
			return 0
		case a.named:
			return -1
		default:
			return 1
		}
	})
	return DeviceConfig{cfgs: sorted}
}

// DefaultDeviceConfig asks for one fused warboy device.
func DefaultDeviceConfig() DeviceConfig {
	return NewDeviceConfig(UnnamedConfig(ArchWarboy, 2, FiniteCount(1)))
}

// ParseDeviceConfig parses comma separated clauses such as "warboy:0:0,warboy(2)*1".
func ParseDeviceConfig(s string) (DeviceConfig, error) {
	tokens := strings.Split(s, configSeparator)
	cfgs := make([]Config, 0, len(tokens))
	for _, token := range tokens {
		cfg, err := ParseConfig(token)
		if err != nil {
			return DeviceConfig{}, err
		}
		cfgs = append(cfgs, cfg)
	}
	return NewDeviceConfig(cfgs...), nil
}

func (d DeviceConfig) Configs() []Config {
	return slices.Clone(d.cfgs)
}

func (d DeviceConfig) String() string {
	parts := make([]string, 0, len(d.cfgs))
	for _, cfg := range d.cfgs {
		parts = append(parts, cfg.String())
	}
	return strings.Join(parts, configSeparator)
}

func (d DeviceConfig) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DeviceConfig) UnmarshalText(text []byte) error {
	parsed, err := ParseDeviceConfig(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
