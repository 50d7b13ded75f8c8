package device

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type CoreStatusType string

const (
	CoreStatusAvailable   CoreStatusType = "available"
	CoreStatusOccupied    CoreStatusType = "occupied"
	CoreStatusUnavailable CoreStatusType = "unavailable"
)

// CoreStatus is the live state of one core. Occupant names the device file
// holding the core when the status is occupied.
type CoreStatus struct {
	Type     CoreStatusType `json:"type" yaml:"type"`
	Occupant string         `json:"occupant,omitempty" yaml:"occupant,omitempty"`
}

func Available() CoreStatus {
	return CoreStatus{Type: CoreStatusAvailable}
}

func Occupied(occupant string) CoreStatus {
	return CoreStatus{Type: CoreStatusOccupied, Occupant: occupant}
}

func Unavailable() CoreStatus {
	return CoreStatus{Type: CoreStatusUnavailable}
}

func (s CoreStatus) IsAvailable() bool {
	return s.Type == CoreStatusAvailable
}

func (s CoreStatus) String() string {
	if s.Type == CoreStatusOccupied {
		return fmt.Sprintf("occupied by %s", s.Occupant)
	}
	return string(s.Type)
}

// Prober checks whether a device file can be opened right now. It returns
// busy=true when another process holds the file and an error for any other failure.
type Prober interface {
	Probe(path string) (busy bool, err error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(path string) (bool, error)

func (f ProberFunc) Probe(path string) (bool, error) {
	return f(path)
}

// OpenProber opens the file read-write and closes it right away. EBUSY means occupied.
type OpenProber struct{}

func (OpenProber) Probe(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return true, nil
		}
		return false, fromIOError(err)
	}
	return false, f.Close()
}

// StatusOfCore probes the single-core device file covering core.
func (d Device) StatusOfCore(ctx context.Context, core uint8) (CoreStatus, error) {
	if err := ctx.Err(); err != nil {
		return CoreStatus{}, err
	}

	for _, file := range d.files {
		if file.Mode() != DeviceModeSingle || !file.CoreRange().Contains(core) {
			continue
		}

		busy, err := d.prober.Probe(file.Path())
		if err != nil {
			return CoreStatus{}, err
		}
		if busy {
			return Occupied(file.Filename()), nil
		}
		return Available(), nil
	}

	return Unavailable(), nil
}

// StatusOfAll probes every core of the device.
func (d Device) StatusOfAll(ctx context.Context) (map[uint8]CoreStatus, error) {
	statuses := make(map[uint8]CoreStatus, len(d.cores))
	for _, core := range d.cores {
		status, err := d.StatusOfCore(ctx, core)
		if err != nil {
			return nil, err
		}
		statuses[core] = status
	}
	return statuses, nil
}
