package device

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// DeviceWithStatus is a device paired with a snapshot of its core statuses.
type DeviceWithStatus struct {
	Device
	Statuses map[uint8]CoreStatus
}

// FindDeviceFilesIn allocates device files for cfg against a status snapshot.
// Clauses are served in order, each unit taking the first fitting file whose
// cores are all still free. Either every clause is satisfied or a DeviceNotFound
// error naming the first unsatisfied clause is returned.
func FindDeviceFilesIn(cfg DeviceConfig, devices []DeviceWithStatus) ([]DeviceFile, error) {
	claimed := make(map[uint8]sets.Set[uint8], len(devices))
	for _, device := range devices {
		busy := sets.New[uint8]()
		for core, status := range device.Statuses {
			if !status.IsAvailable() {
				busy.Insert(core)
			}
		}
		claimed[device.DeviceIndex()] = busy
	}

	var allocated []DeviceFile
	for _, clause := range cfg.cfgs {
		count := clause.Count()
		for n := 0; count.IsAll() || n < int(count.Value()); n++ {
			file, ok := claimFirstFit(clause, devices, claimed)
			if !ok {
				if count.IsAll() && n > 0 {
					break
				}
				return nil, deviceNotFound(clause)
			}
			allocated = append(allocated, file)
		}
	}

	return allocated, nil
}

func claimFirstFit(clause Config, devices []DeviceWithStatus, claimed map[uint8]sets.Set[uint8]) (DeviceFile, bool) {
	for _, device := range devices {
		busy := claimed[device.DeviceIndex()]
		for _, file := range device.files {
			if !clause.Fit(device.Arch(), file) {
				continue
			}

			cores := coresIn(device.cores, file.CoreRange())
			if busy.HasAny(cores...) {
				continue
			}

			busy.Insert(cores...)
			return file, true
		}
	}
	return DeviceFile{}, false
}

func coresIn(cores []uint8, r CoreRange) []uint8 {
	var covered []uint8
	for _, core := range cores {
		if r.Contains(core) {
			covered = append(covered, core)
		}
	}
	return covered
}
