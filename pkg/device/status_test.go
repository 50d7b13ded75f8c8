package device_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
	"github.com/furiosa-ai/furiosa-device-api/pkg/device/devicetest"
)

// busyProber reports the listed device files as held by another process.
func busyProber(busy ...string) device.Prober {
	return device.ProberFunc(func(path string) (bool, error) {
		for _, name := range busy {
			if filepath.Base(path) == name {
				return true, nil
			}
		}
		return false, nil
	})
}

func TestStatusOfAll(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0)

	devices, err := fixture.Lister().ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)

	statuses, err := devices[0].StatusOfAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[uint8]device.CoreStatus{
		0: device.Available(),
		1: device.Available(),
	}, statuses)
}

func TestStatusOfCoreOccupied(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0)

	devices, err := fixture.Lister(device.WithProber(busyProber("npu0pe1"))).ListDevices(context.Background())
	require.NoError(t, err)

	status, err := devices[0].StatusOfCore(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, device.Occupied("npu0pe1"), status)
	assert.Equal(t, "occupied by npu0pe1", status.String())

	status, err = devices[0].StatusOfCore(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, status.IsAvailable())
}

func TestStatusOfCoreWithoutSingleFile(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0)
	require.NoError(t, os.Remove(filepath.Join(fixture.Devfs, "npu0pe1")))

	devices, err := fixture.Lister().ListDevices(context.Background())
	require.NoError(t, err)

	statuses, err := devices[0].StatusOfAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, device.Available(), statuses[0])
	assert.Equal(t, device.Unavailable(), statuses[1])

	status, err := devices[0].StatusOfCore(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, device.Unavailable(), status)
}

func TestStatusProbeFailure(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0)
	probeErr := errors.New("device vanished")
	prober := device.ProberFunc(func(string) (bool, error) {
		return false, probeErr
	})

	devices, err := fixture.Lister(device.WithProber(prober)).ListDevices(context.Background())
	require.NoError(t, err)

	_, err = devices[0].StatusOfAll(context.Background())
	assert.ErrorIs(t, err, probeErr)
}

func TestOpenProber(t *testing.T) {
	fixture := devicetest.NewFixture(t)
	path := fixture.AddDeviceFile(device.ArchWarboy, "npu0pe0")

	busy, err := device.OpenProber{}.Probe(path)
	assert.NoError(t, err)
	assert.False(t, busy)

	_, err = device.OpenProber{}.Probe(filepath.Join(fixture.Devfs, "npu9pe0"))
	assert.ErrorIs(t, err, device.IoError)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
