package device_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
	"github.com/furiosa-ai/furiosa-device-api/pkg/device/devicetest"
)

func TestBlockingListerMatchesLister(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(2, 0).AddRngd(1).AddForeign(device.ArchRngd, 3)
	lister := fixture.Lister(device.WithProber(busyProber("npu0pe0")))
	blocking := lister.Blocking()

	expected, err := lister.ListDevices(context.Background())
	require.NoError(t, err)
	actual, err := blocking.ListDevices()
	require.NoError(t, err)

	require.Equal(t, deviceNames(expected), deviceNames(actual))
	for i := range expected {
		assert.True(t, expected[i].Equal(actual[i]))
		assert.Equal(t, fileNames(expected[i].DevFiles()), fileNames(actual[i].DevFiles()))
	}

	cfg := mustParseDeviceConfig(t, "rngd(4)*1,warboy(2)*1,warboy(1)*1")
	expectedFiles, err := lister.FindDeviceFiles(context.Background(), cfg)
	require.NoError(t, err)
	actualFiles, err := blocking.FindDeviceFiles(cfg)
	require.NoError(t, err)
	assert.Equal(t, fileNames(expectedFiles), fileNames(actualFiles))
	assert.Equal(t, []string{"npu1pe0-3", "npu2pe0-1", "npu0pe1"}, fileNames(actualFiles))
}

func TestBlockingListerLookups(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0)
	blocking := fixture.Lister().Blocking()

	npu0, err := blocking.GetDevice(0)
	require.NoError(t, err)
	assert.Equal(t, "npu0", npu0.Name())

	_, err = blocking.GetDevice(1)
	assert.ErrorIs(t, err, device.DeviceNotFound)

	file, err := blocking.GetDeviceFile("npu0pe1")
	require.NoError(t, err)
	assert.Equal(t, device.DeviceModeSingle, file.Mode())

	_, err = blocking.FindDeviceFiles(mustParseDeviceConfig(t, "warboy(2)*2"))
	assert.ErrorIs(t, err, device.DeviceNotFound)
}
