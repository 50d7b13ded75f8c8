package device

import (
	"io/fs"
	"regexp"
	"strconv"
)

const (
	deviceFilePattern = `^npu(?P<device_id>\d+)(?:pe(?P<start_core>\d+)(?:-(?P<end_core>\d+))?)?$`

	subExpKeyDeviceID  = "device_id"
	subExpKeyStartCore = "start_core"
	subExpKeyEndCore   = "end_core"
)

var (
	deviceFileRegExp = regexp.MustCompile(deviceFilePattern)
)

// FileTypePolicy decides whether a devfs entry may be a device file.
type FileTypePolicy func(mode fs.FileMode) bool

// CharDevicePolicy accepts character devices only. This is what the kernel driver exposes.
func CharDevicePolicy(mode fs.FileMode) bool {
	return mode&fs.ModeCharDevice != 0
}

// RegularFilePolicy accepts plain files, for fixtures that cannot create device nodes.
func RegularFilePolicy(mode fs.FileMode) bool {
	return mode.IsRegular()
}

// ParseIndices splits a device file name into its device index and core indices.
//
//	npu0      -> 0, []
//	npu3pe4   -> 3, [4]
//	npu3pe4-7 -> 3, [4 5 6 7]
//
// A reversed range such as npu0pe3-1 yields both endpoints in the given order
// so that building a CoreRange from it fails.
func ParseIndices(filename string) (uint8, []uint8, error) {
	matches := deviceFileRegExp.FindStringSubmatch(filename)
	if matches == nil {
		return 0, nil, unrecognizedFile(filename)
	}

	namedMatches := map[string]string{}
	for i, subExp := range deviceFileRegExp.SubexpNames() {
		if subExp == "" || matches[i] == "" {
			continue
		}
		namedMatches[subExp] = matches[i]
	}

	deviceID, err := parseID(filename, namedMatches[subExpKeyDeviceID])
	if err != nil {
		return 0, nil, err
	}

	start, hasStart := namedMatches[subExpKeyStartCore]
	if !hasStart {
		return deviceID, []uint8{}, nil
	}
	startCore, err := parseID(filename, start)
	if err != nil {
		return 0, nil, err
	}

	end, hasEnd := namedMatches[subExpKeyEndCore]
	if !hasEnd {
		return deviceID, []uint8{startCore}, nil
	}
	endCore, err := parseID(filename, end)
	if err != nil {
		return 0, nil, err
	}

	if endCore < startCore {
		return deviceID, []uint8{startCore, endCore}, nil
	}

	cores := make([]uint8, 0, int(endCore-startCore)+1)
	for c := int(startCore); c <= int(endCore); c++ {
		cores = append(cores, uint8(c))
	}
	return deviceID, cores, nil
}

func parseID(filename, digits string) (uint8, error) {
	id, err := strconv.ParseUint(digits, 10, 8)
	if err != nil {
		return 0, unrecognizedFile(filename)
	}
	return uint8(id), nil
}
