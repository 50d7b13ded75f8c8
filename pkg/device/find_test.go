package device_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
	"github.com/furiosa-ai/furiosa-device-api/pkg/device/devicetest"
)

func mustParseDeviceConfig(t *testing.T, s string) device.DeviceConfig {
	t.Helper()

	cfg, err := device.ParseDeviceConfig(s)
	require.NoError(t, err)
	return cfg
}

func TestFindDeviceFiles(t *testing.T) {
	tests := []struct {
		description    string
		busy           []string
		config         string
		expectedResult []string
		expectedError  bool
	}{
		{
			description:    "four single cores",
			config:         "warboy(1)*4",
			expectedResult: []string{"npu0pe0", "npu0pe1", "npu1pe0", "npu1pe1"},
		},
		{
			description:   "five single cores",
			config:        "warboy(1)*5",
			expectedError: true,
		},
		{
			description:    "two fused pairs",
			config:         "warboy(2)*2",
			expectedResult: []string{"npu0pe0-1", "npu1pe0-1"},
		},
		{
			description:   "three fused pairs",
			config:        "warboy(2)*3",
			expectedError: true,
		},
		{
			description:    "fewer than available is a prefix",
			config:         "warboy(1)*3",
			expectedResult: []string{"npu0pe0", "npu0pe1", "npu1pe0"},
		},
		{
			description:    "named clauses are served first",
			config:         "warboy(1)*2,warboy:0:1",
			expectedResult: []string{"npu0pe1", "npu0pe0", "npu1pe0"},
		},
		{
			description:    "named fused then singles elsewhere",
			config:         "warboy(1)*2,0:0-1",
			expectedResult: []string{"npu0pe0-1", "npu1pe0", "npu1pe1"},
		},
		{
			description:    "fused skips device with a busy core",
			busy:           []string{"npu0pe1"},
			config:         "warboy(2)*1",
			expectedResult: []string{"npu1pe0-1"},
		},
		{
			description:    "singles skip busy cores",
			busy:           []string{"npu0pe0", "npu1pe1"},
			config:         "warboy(1)*2",
			expectedResult: []string{"npu0pe1", "npu1pe0"},
		},
		{
			description:   "named clause on a busy core",
			busy:          []string{"npu1pe0"},
			config:        "warboy:1:0",
			expectedError: true,
		},
		{
			description:   "named clauses overlapping in one request",
			config:        "warboy:0:0-1,warboy:0:1",
			expectedError: true,
		},
		{
			description:   "named clause claimed by an earlier named clause fails the whole request",
			config:        "warboy:0:0,warboy:0:0-1,warboy(1)*1",
			expectedError: true,
		},
		{
			description:   "no device of the requested architecture",
			config:        "rngd(1)*1",
			expectedError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			fixture := devicetest.NewFixture(t).AddWarboy(0, 1)
			lister := fixture.Lister(device.WithProber(busyProber(tc.busy...)))

			actual, err := lister.FindDeviceFiles(context.Background(), mustParseDeviceConfig(t, tc.config))
			if tc.expectedError {
				assert.ErrorIs(t, err, device.DeviceNotFound)
				assert.Nil(t, actual)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedResult, fileNames(actual))
		})
	}
}

func TestFindDeviceFilesErrorNamesClause(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0, 1)

	_, err := fixture.Lister().FindDeviceFiles(context.Background(), mustParseDeviceConfig(t, "warboy(2)*1,warboy(2)*2"))
	assert.EqualError(t, err, "Device warboy(2)*2 not found")
}

func TestFindDeviceFilesAllCount(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0, 1)
	lister := fixture.Lister(device.WithProber(busyProber("npu1pe1")))

	all, err := device.NewDeviceConfigBuilder().Warboy().Single().All()
	require.NoError(t, err)

	actual, err := lister.FindDeviceFiles(context.Background(), all)
	require.NoError(t, err)
	assert.Equal(t, []string{"npu0pe0", "npu0pe1", "npu1pe0"}, fileNames(actual))

	busyLister := fixture.Lister(device.WithProber(busyProber("npu0pe0", "npu0pe1", "npu1pe0", "npu1pe1")))
	_, err = busyLister.FindDeviceFiles(context.Background(), all)
	assert.ErrorIs(t, err, device.DeviceNotFound)
}

func TestFindDeviceFilesExclusive(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0, 1, 2).AddRngd(3)
	lister := fixture.Lister(device.WithProber(busyProber("npu2pe0")))

	configs := []string{
		"warboy(1)*5",
		"warboy(2)*2,warboy(1)*1",
		"rngd(4)*1,rngd(2)*1,rngd(1)*2",
		"rngd(1)*8,warboy(1)*5",
		"warboy:2:1,rngd:3:0-3,rngd(2)*2",
	}

	for _, config := range configs {
		t.Run(config, func(t *testing.T) {
			devices, err := lister.ListDevices(context.Background())
			require.NoError(t, err)
			withStatus, err := lister.ExpandStatus(context.Background(), devices)
			require.NoError(t, err)

			actual, err := device.FindDeviceFilesIn(mustParseDeviceConfig(t, config), withStatus)
			require.NoError(t, err)

			claimed := map[uint8]map[uint8]string{}
			for _, file := range actual {
				if claimed[file.DeviceIndex()] == nil {
					claimed[file.DeviceIndex()] = map[uint8]string{}
				}
				for core := uint8(0); core < 8; core++ {
					if !file.CoreRange().Contains(core) {
						continue
					}
					previous, taken := claimed[file.DeviceIndex()][core]
					assert.False(t, taken, "core %d of npu%d claimed by %s and %s", core, file.DeviceIndex(), previous, file)
					claimed[file.DeviceIndex()][core] = file.Filename()
				}
			}
			_, npu2core0Taken := claimed[2][0]
			assert.False(t, npu2core0Taken)
		})
	}
}

func TestFindDeviceFilesDeterministic(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0, 1).AddRngd(2)
	lister := fixture.Lister()
	cfg := mustParseDeviceConfig(t, "rngd(2)*3,warboy(1)*3")

	first, err := lister.FindDeviceFiles(context.Background(), cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := lister.FindDeviceFiles(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"npu2pe0-1", "npu2pe2-3", "npu2pe4-5", "npu0pe0", "npu0pe1", "npu1pe0"}, fileNames(first))
}
