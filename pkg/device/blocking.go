package device

import (
	"context"
)

// BlockingLister runs the same enumeration and allocation as Lister one device
// at a time on the calling goroutine, for callers without a context to thread through.
type BlockingLister struct {
	lister *Lister
}

func (l *Lister) Blocking() *BlockingLister {
	return &BlockingLister{lister: l}
}

func (b *BlockingLister) ListDevices() ([]Device, error) {
	var devices []Device
	for _, arch := range Archs() {
		candidates, err := b.lister.collectCandidates(arch)
		if err != nil {
			return nil, err
		}

		for _, c := range candidates {
			device, err := b.lister.assemble(c)
			if err != nil {
				b.lister.logger.Debug().Err(err).Str("arch", c.arch.String()).Uint8("index", c.index).Msg("skipping device")
				continue
			}
			devices = append(devices, device)
		}
	}

	sortDevices(devices)
	return devices, nil
}

func (b *BlockingLister) GetDevice(idx uint8) (Device, error) {
	devices, err := b.ListDevices()
	if err != nil {
		return Device{}, err
	}
	return findDevice(devices, idx)
}

func (b *BlockingLister) GetDeviceFile(name string) (DeviceFile, error) {
	return b.lister.getDeviceFile(name)
}

func (b *BlockingLister) FindDeviceFiles(cfg DeviceConfig) ([]DeviceFile, error) {
	devices, err := b.ListDevices()
	if err != nil {
		return nil, err
	}

	withStatus, err := b.ExpandStatus(devices)
	if err != nil {
		return nil, err
	}
	return FindDeviceFilesIn(cfg, withStatus)
}

func (b *BlockingLister) ExpandStatus(devices []Device) ([]DeviceWithStatus, error) {
	expanded := make([]DeviceWithStatus, 0, len(devices))
	for _, device := range devices {
		statuses, err := device.StatusOfAll(context.Background())
		if err != nil {
			return nil, err
		}
		expanded = append(expanded, DeviceWithStatus{Device: device, Statuses: statuses})
	}
	return expanded, nil
}
