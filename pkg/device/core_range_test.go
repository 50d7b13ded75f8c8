package device

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCoreRange(t *testing.T, start, end uint8) CoreRange {
	t.Helper()

	if start == end {
		return SingleCoreRange(start)
	}
	r, err := NewCoreRange(start, end)
	require.NoError(t, err)
	return r
}

func TestCoreRangeOrdering(t *testing.T) {
	ordered := []CoreRange{
		CoreRangeAll(),
		SingleCoreRange(0),
		SingleCoreRange(1),
		mustCoreRange(t, 0, 1),
		mustCoreRange(t, 2, 3),
		mustCoreRange(t, 0, 3),
	}

	for i := range ordered {
		for j := range ordered {
			expected := 0
			switch {
			case i < j:
				expected = -1
			case i > j:
				expected = 1
			}
			assert.Equal(t, expected, ordered[i].Compare(ordered[j]), "%s vs %s", ordered[i], ordered[j])
		}
	}

	shuffled := []CoreRange{ordered[4], ordered[0], ordered[5], ordered[2], ordered[3], ordered[1]}
	slices.SortFunc(shuffled, CoreRange.Compare)
	assert.Equal(t, ordered, shuffled)
}

func TestNewCoreRange(t *testing.T) {
	tests := []struct {
		description   string
		start         uint8
		end           uint8
		expectedError bool
	}{
		{
			description: "fused pair",
			start:       0,
			end:         1,
		},
		{
			description:   "same start and end",
			start:         2,
			end:           2,
			expectedError: true,
		},
		{
			description:   "reversed",
			start:         3,
			end:           1,
			expectedError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			actual, err := NewCoreRange(tc.start, tc.end)
			if tc.expectedError {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.start, actual.Start())
			assert.Equal(t, tc.end, actual.End())
			assert.Equal(t, CoreRangeTypeRange, actual.Type())
		})
	}
}

func TestCoreRangeContainsAndIntersects(t *testing.T) {
	all := CoreRangeAll()
	core1 := SingleCoreRange(1)
	core01 := mustCoreRange(t, 0, 1)
	core23 := mustCoreRange(t, 2, 3)
	core03 := mustCoreRange(t, 0, 3)

	assert.True(t, all.Contains(200))
	assert.True(t, core01.Contains(0))
	assert.True(t, core01.Contains(1))
	assert.False(t, core01.Contains(2))
	assert.True(t, core1.Contains(1))
	assert.False(t, core1.Contains(0))

	assert.True(t, all.HasIntersection(core23))
	assert.True(t, core23.HasIntersection(all))
	assert.True(t, core01.HasIntersection(core1))
	assert.False(t, core01.HasIntersection(core23))
	assert.True(t, core03.HasIntersection(core23))
	assert.False(t, core1.HasIntersection(core23))
}

func TestCoreRangeString(t *testing.T) {
	assert.Equal(t, "all", CoreRangeAll().String())
	assert.Equal(t, "3", SingleCoreRange(3).String())
	assert.Equal(t, "4-7", mustCoreRange(t, 4, 7).String())
	assert.Equal(t, uint8(4), mustCoreRange(t, 4, 7).Width())
	assert.Equal(t, uint8(0), CoreRangeAll().Width())
}

func TestParseDeviceMode(t *testing.T) {
	tests := []struct {
		description    string
		input          string
		expectedResult DeviceMode
		expectedError  bool
	}{
		{
			description:    "single",
			input:          "single",
			expectedResult: DeviceModeSingle,
		},
		{
			description:    "fusion mixed case",
			input:          "Fusion",
			expectedResult: DeviceModeFusion,
		},
		{
			description:    "multicore upper case",
			input:          "MULTICORE",
			expectedResult: DeviceModeMultiCore,
		},
		{
			description:   "unknown",
			input:         "pipelined",
			expectedError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			actual, err := ParseDeviceMode(tc.input)
			if tc.expectedError {
				assert.ErrorIs(t, err, ParseError)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.expectedResult, actual)
		})
	}
}

func TestNewDeviceFile(t *testing.T) {
	tests := []struct {
		description       string
		path              string
		expectedIndex     uint8
		expectedCoreRange CoreRange
		expectedMode      DeviceMode
		expectedError     bool
	}{
		{
			description:       "multi core",
			path:              "/dev/npu0",
			expectedIndex:     0,
			expectedCoreRange: CoreRangeAll(),
			expectedMode:      DeviceModeMultiCore,
		},
		{
			description:       "single",
			path:              "/dev/npu2pe1",
			expectedIndex:     2,
			expectedCoreRange: SingleCoreRange(1),
			expectedMode:      DeviceModeSingle,
		},
		{
			description:       "fusion",
			path:              "/dev/rngd/npu1pe4-7",
			expectedIndex:     1,
			expectedCoreRange: mustCoreRange(t, 4, 7),
			expectedMode:      DeviceModeFusion,
		},
		{
			description:   "reversed range",
			path:          "/dev/npu0pe1-0",
			expectedError: true,
		},
		{
			description:   "not a device file",
			path:          "/dev/null",
			expectedError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			actual, err := NewDeviceFile(tc.path)
			if tc.expectedError {
				assert.ErrorIs(t, err, IncompatibleDriver)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.expectedIndex, actual.DeviceIndex())
			assert.Equal(t, tc.expectedCoreRange, actual.CoreRange())
			assert.Equal(t, tc.expectedMode, actual.Mode())
			assert.Equal(t, tc.path, actual.Path())
			assert.Equal(t, actual.Filename(), actual.String())
		})
	}
}
