package device

import (
	"errors"
	"fmt"
)

const (
	defaultCoreNum = 1
	fusedCoreNum   = 2
	defaultCount   = 1
)

// DeviceConfigBuilder builds a single unnamed clause. The architecture is
// required; cores default to 1 and count defaults to 1.
//
//	cfg, err := device.NewDeviceConfigBuilder().Warboy().Fused().Count(2)
type DeviceConfigBuilder struct {
	arch    Arch
	coreNum uint8
	count   *Count
	errs    []error
}

func NewDeviceConfigBuilder() *DeviceConfigBuilder {
	return &DeviceConfigBuilder{}
}

func (b *DeviceConfigBuilder) Arch(arch Arch) *DeviceConfigBuilder {
	switch {
	case b.arch != "":
		b.errs = append(b.errs, fmt.Errorf("architecture is already set to %s", b.arch))
	case !arch.valid():
		b.errs = append(b.errs, unknownArch(string(arch)))
	default:
		b.arch = arch
	}
	return b
}

func (b *DeviceConfigBuilder) Warboy() *DeviceConfigBuilder {
	return b.Arch(ArchWarboy)
}

func (b *DeviceConfigBuilder) Rngd() *DeviceConfigBuilder {
	return b.Arch(ArchRngd)
}

// Cores sets how many fused cores make up one unit.
func (b *DeviceConfigBuilder) Cores(n uint8) *DeviceConfigBuilder {
	switch {
	case b.coreNum != 0:
		b.errs = append(b.errs, fmt.Errorf("cores are already set to %d", b.coreNum))
	case n == 0:
		b.errs = append(b.errs, errors.New("cores must be positive"))
	default:
		b.coreNum = n
	}
	return b
}

func (b *DeviceConfigBuilder) Single() *DeviceConfigBuilder {
	return b.Cores(defaultCoreNum)
}

// Fused asks for pairs of fused cores.
func (b *DeviceConfigBuilder) Fused() *DeviceConfigBuilder {
	return b.Cores(fusedCoreNum)
}

// Count finishes the builder with a finite number of units.
func (b *DeviceConfigBuilder) Count(n uint8) (DeviceConfig, error) {
	count := FiniteCount(n)
	b.count = &count
	return b.Build()
}

// All finishes the builder requesting every available unit.
func (b *DeviceConfigBuilder) All() (DeviceConfig, error) {
	count := AllCount()
	b.count = &count
	return b.Build()
}

func (b *DeviceConfigBuilder) Build() (DeviceConfig, error) {
	errs := b.errs
	if b.arch == "" {
		errs = append(errs, errors.New("architecture is not set"))
	}

	coreNum := b.coreNum
	if coreNum == 0 {
		coreNum = defaultCoreNum
	}
	if b.arch != "" && !b.arch.IsFusibleCount(coreNum) {
		errs = append(errs, fmt.Errorf("%d cores cannot be fused on %s", coreNum, b.arch))
	}

	count := FiniteCount(defaultCount)
	if b.count != nil {
		count = *b.count
	}
	if !count.IsAll() && count.Value() == 0 {
		errs = append(errs, errors.New("count must be positive"))
	}

	if len(errs) > 0 {
		return DeviceConfig{}, parseError("device config builder", errors.Join(errs...))
	}
	return NewDeviceConfig(UnnamedConfig(b.arch, coreNum, count)), nil
}
