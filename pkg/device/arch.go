package device

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Arch is an NPU family. The set is fixed; see Archs.
type Arch string

const (
	ArchWarboy Arch = "warboy"
	ArchRngd   Arch = "rngd"
)

const platformTypeFile = "platform_type"

var archAliases = map[string]Arch{
	"warboy":   ArchWarboy,
	"warboyb0": ArchWarboy,
	"npu":      ArchWarboy,
	"rngd":     ArchRngd,
	"renegade": ArchRngd,
}

var acceptedPlatformTypes = []string{"FuriosaAI", "VITIS"}

// Archs returns every supported architecture in enumeration order.
func Archs() []Arch {
	return []Arch{ArchWarboy, ArchRngd}
}

// ParseArch accepts the canonical names and their aliases, ignoring case.
func ParseArch(s string) (Arch, error) {
	if arch, ok := archAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return arch, nil
	}
	return "", unknownArch(s)
}

func (a Arch) String() string {
	return string(a)
}

// NumCores is the number of processing elements on one device.
func (a Arch) NumCores() uint8 {
	switch a {
	case ArchWarboy:
		return 2
	case ArchRngd:
		return 8
	}
	return 0
}

// IsFusibleCount reports whether count cores can be fused into one device file.
func (a Arch) IsFusibleCount(count uint8) bool {
	switch a {
	case ArchWarboy:
		return count == 1 || count == 2
	case ArchRngd:
		return count == 1 || count == 2 || count == 4
	}
	return false
}

// FusibleCounts lists the valid fusion widths in ascending order.
func (a Arch) FusibleCounts() []uint8 {
	var counts []uint8
	for n := uint8(1); n <= a.NumCores(); n++ {
		if a.IsFusibleCount(n) {
			counts = append(counts, n)
		}
	}
	return counts
}

// DevfilePath is the directory holding this architecture's device files.
func (a Arch) DevfilePath(devfs string) string {
	switch a {
	case ArchRngd:
		return filepath.Join(devfs, "rngd")
	default:
		return devfs
	}
}

// ManagementDir is the sysfs directory of one device's management attributes.
func (a Arch) ManagementDir(sysfs string, idx uint8) string {
	switch a {
	case ArchRngd:
		return filepath.Join(sysfs, "class", "rngd_mgmt", fmt.Sprintf("rngd!npu%dmgmt", idx))
	default:
		return filepath.Join(sysfs, "class", "npu_mgmt", fmt.Sprintf("npu%d_mgmt", idx))
	}
}

func (a Arch) PlatformTypePath(sysfs string, idx uint8) string {
	return filepath.Join(a.ManagementDir(sysfs, idx), platformTypeFile)
}

func (a Arch) valid() bool {
	return a == ArchWarboy || a == ArchRngd
}

func isFuriosaPlatform(contents string) bool {
	contents = strings.TrimSpace(contents)
	for _, accepted := range acceptedPlatformTypes {
		if contents == accepted {
			return true
		}
	}
	return false
}
