package watcher

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

type EventType string

const (
	Added         EventType = "Added"
	Removed       EventType = "Removed"
	StatusChanged EventType = "StatusChanged"
)

type Event struct {
	Type     EventType
	Device   device.Device
	Statuses map[uint8]device.CoreStatus
}

// Snapshot is the result of one enumeration, keyed by device index.
type Snapshot map[uint8]device.DeviceWithStatus

func NewSnapshot(devices []device.DeviceWithStatus) Snapshot {
	snapshot := make(Snapshot, len(devices))
	for _, d := range devices {
		snapshot[d.DeviceIndex()] = d
	}
	return snapshot
}

// Diff lists what changed from previous to current in device index order. A
// device replaced under the same index is reported as Removed then Added.
func Diff(previous, current Snapshot) []Event {
	indices := slices.Sorted(maps.Keys(previous))
	for idx := range current {
		if _, ok := previous[idx]; !ok {
			indices = append(indices, idx)
		}
	}
	slices.Sort(indices)

	var events []Event
	for _, idx := range indices {
		prev, hadPrev := previous[idx]
		cur, hasCur := current[idx]

		switch {
		case hadPrev && !hasCur:
			events = append(events, Event{Type: Removed, Device: prev.Device, Statuses: prev.Statuses})
		case !hadPrev && hasCur:
			events = append(events, Event{Type: Added, Device: cur.Device, Statuses: cur.Statuses})
		case !sameDevice(prev.Device, cur.Device):
			events = append(events,
				Event{Type: Removed, Device: prev.Device, Statuses: prev.Statuses},
				Event{Type: Added, Device: cur.Device, Statuses: cur.Statuses})
		case !maps.Equal(prev.Statuses, cur.Statuses):
			events = append(events, Event{Type: StatusChanged, Device: cur.Device, Statuses: cur.Statuses})
		}
	}
	return events
}

func sameDevice(a, b device.Device) bool {
	return a.Equal(b) && a.DeviceUUID() == b.DeviceUUID()
}

// Watcher re-enumerates devices whenever a devfs directory changes and at
// least every resync interval, and reports the differences.
type Watcher struct {
	lister         *device.Lister
	resyncInterval time.Duration
	previous       Snapshot
}

func New(lister *device.Lister, resyncInterval time.Duration) *Watcher {
	return &Watcher{
		lister:         lister,
		resyncInterval: resyncInterval,
		previous:       Snapshot{},
	}
}

// Run blocks until ctx is done. The first sync reports every present device as Added.
func (w *Watcher) Run(ctx context.Context, events chan<- Event) error {
	logger := zerolog.Ctx(ctx)

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	for _, arch := range device.Archs() {
		dir := arch.DevfilePath(w.lister.DevfsRoot())
		if err := fsWatcher.Add(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug().Str("path", dir).Msg("devfs directory does not exist, relying on resync")
				continue
			}
			return err
		}
	}

	syncChan := make(chan struct{}, 1)
	requestSync := func() {
		select {
		case syncChan <- struct{}{}:
		default:
		}
	}

	go wait.UntilWithContext(ctx, func(context.Context) {
		requestSync()
	}, w.resyncInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case fsEvent, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			logger.Debug().Str("path", fsEvent.Name).Str("op", fsEvent.Op.String()).Msg("devfs event")
			requestSync()
		case watchErr, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			logger.Err(watchErr).Msg("devfs watch error")
		case <-syncChan:
			if err := w.Sync(ctx, events); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Err(err).Msg("couldn't enumerate devices")
			}
		}
	}
}

// Sync enumerates once and sends the differences from the previous sync.
func (w *Watcher) Sync(ctx context.Context, events chan<- Event) error {
	devices, err := w.lister.ListDevices(ctx)
	if err != nil {
		return err
	}

	withStatus, err := w.lister.ExpandStatus(ctx, devices)
	if err != nil {
		return err
	}

	current := NewSnapshot(withStatus)
	for _, event := range Diff(w.previous, current) {
		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.previous = current
	return nil
}
