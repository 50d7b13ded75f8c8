package device

import (
	"context"
	"sync"
)

var (
	defaultListerOnce sync.Once
	defaultLister     *Lister
)

// DefaultLister reads /dev and /sys unless FURIOSA_DEV_FS or FURIOSA_SYS_FS
// were set when it was first used.
func DefaultLister() *Lister {
	defaultListerOnce.Do(func() {
		defaultLister = NewListerFromEnv()
	})
	return defaultLister
}

func ListDevices(ctx context.Context) ([]Device, error) {
	return DefaultLister().ListDevices(ctx)
}

func GetDevice(ctx context.Context, idx uint8) (Device, error) {
	return DefaultLister().GetDevice(ctx, idx)
}

func GetDeviceFile(ctx context.Context, name string) (DeviceFile, error) {
	return DefaultLister().GetDeviceFile(ctx, name)
}

func FindDeviceFiles(ctx context.Context, cfg DeviceConfig) ([]DeviceFile, error) {
	return DefaultLister().FindDeviceFiles(ctx, cfg)
}
