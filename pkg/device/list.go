package device

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDevfsRoot = "/dev"
	DefaultSysfsRoot = "/sys"

	EnvDevfsRoot = "FURIOSA_DEV_FS"
	EnvSysfsRoot = "FURIOSA_SYS_FS"
)

// Lister enumerates devices below a devfs and a sysfs root. A Lister holds no
// state between calls; every call reads the filesystem again.
type Lister struct {
	devfs          string
	sysfs          string
	fileTypePolicy FileTypePolicy
	prober         Prober
	logger         zerolog.Logger
}

type Option func(*Lister)

func WithDevfsRoot(devfs string) Option {
	return func(l *Lister) {
		l.devfs = devfs
	}
}

func WithSysfsRoot(sysfs string) Option {
	return func(l *Lister) {
		l.sysfs = sysfs
	}
}

func WithFileTypePolicy(policy FileTypePolicy) Option {
	return func(l *Lister) {
		l.fileTypePolicy = policy
	}
}

func WithProber(prober Prober) Option {
	return func(l *Lister) {
		l.prober = prober
	}
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Lister) {
		l.logger = logger
	}
}

func NewLister(opts ...Option) *Lister {
	l := &Lister{
		devfs:          DefaultDevfsRoot,
		sysfs:          DefaultSysfsRoot,
		fileTypePolicy: CharDevicePolicy,
		prober:         OpenProber{},
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewListerFromEnv is NewLister with FURIOSA_DEV_FS and FURIOSA_SYS_FS applied
// before opts.
func NewListerFromEnv(opts ...Option) *Lister {
	var envOpts []Option
	if devfs, ok := os.LookupEnv(EnvDevfsRoot); ok && devfs != "" {
		envOpts = append(envOpts, WithDevfsRoot(devfs))
	}
	if sysfs, ok := os.LookupEnv(EnvSysfsRoot); ok && sysfs != "" {
		envOpts = append(envOpts, WithSysfsRoot(sysfs))
	}
	return NewLister(append(envOpts, opts...)...)
}

func (l *Lister) DevfsRoot() string {
	return l.devfs
}

func (l *Lister) SysfsRoot() string {
	return l.sysfs
}

// candidate is one device index found in devfs, not yet confirmed by sysfs.
type candidate struct {
	arch  Arch
	index uint8
	paths []string
}

// ListDevices assembles every device concurrently and returns them sorted by index.
// A device whose management files cannot be read is left out of the result.
func (l *Lister) ListDevices(ctx context.Context) ([]Device, error) {
	logger := l.loggerFrom(ctx)

	var candidates []candidate
	for _, arch := range Archs() {
		found, err := l.collectCandidates(arch)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}

	assembled := make([]*Device, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(len(candidates), 1))
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			device, err := l.assemble(c)
			if err != nil {
				logger.Debug().Err(err).Str("arch", c.arch.String()).Uint8("index", c.index).Msg("skipping device")
				return nil
			}
			assembled[i] = &device
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return collectAssembled(assembled), nil
}

// GetDevice returns the device with the given index.
func (l *Lister) GetDevice(ctx context.Context, idx uint8) (Device, error) {
	devices, err := l.ListDevices(ctx)
	if err != nil {
		return Device{}, err
	}
	return findDevice(devices, idx)
}

// GetDeviceFile resolves a device file name such as npu0pe0-1.
func (l *Lister) GetDeviceFile(ctx context.Context, name string) (DeviceFile, error) {
	if err := ctx.Err(); err != nil {
		return DeviceFile{}, err
	}
	return l.getDeviceFile(name)
}

// FindDeviceFiles allocates device files satisfying cfg from the devices available now.
func (l *Lister) FindDeviceFiles(ctx context.Context, cfg DeviceConfig) ([]DeviceFile, error) {
	devices, err := l.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	withStatus, err := l.ExpandStatus(ctx, devices)
	if err != nil {
		return nil, err
	}
	return FindDeviceFilesIn(cfg, withStatus)
}

// ExpandStatus probes every core of every device concurrently.
func (l *Lister) ExpandStatus(ctx context.Context, devices []Device) ([]DeviceWithStatus, error) {
	expanded := make([]DeviceWithStatus, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(len(devices), 1))
	for i, device := range devices {
		g.Go(func() error {
			statuses, err := device.StatusOfAll(gctx)
			if err != nil {
				return err
			}
			expanded[i] = DeviceWithStatus{Device: device, Statuses: statuses}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return expanded, nil
}

func (l *Lister) loggerFrom(ctx context.Context) *zerolog.Logger {
	if logger := zerolog.Ctx(ctx); logger.GetLevel() != zerolog.Disabled {
		return logger
	}
	return &l.logger
}

// collectCandidates groups recognised device files of one architecture by device index.
func (l *Lister) collectCandidates(arch Arch) ([]candidate, error) {
	dir := arch.DevfilePath(l.devfs)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fromIOError(err)
	}

	groups := map[uint8][]string{}
	var order []uint8
	for _, entry := range entries {
		if !l.fileTypePolicy(entry.Type()) {
			continue
		}

		idx, _, err := ParseIndices(entry.Name())
		if err != nil {
			continue
		}

		path, err := canonicalize(filepath.Join(dir, entry.Name()))
		if err != nil {
			l.logger.Debug().Err(err).Str("file", entry.Name()).Msg("skipping device file that could not be resolved")
			continue
		}
		if _, ok := groups[idx]; !ok {
			order = append(order, idx)
		}
		groups[idx] = append(groups[idx], path)
	}

	candidates := make([]candidate, 0, len(order))
	for _, idx := range order {
		candidates = append(candidates, candidate{arch: arch, index: idx, paths: groups[idx]})
	}
	return candidates, nil
}

// assemble confirms the platform type and builds the device.
func (l *Lister) assemble(c candidate) (Device, error) {
	platformType, err := readSysfsString(c.arch.PlatformTypePath(l.sysfs, c.index))
	if err != nil || !isFuriosaPlatform(platformType) {
		return Device{}, deviceNotFound(fmtDeviceName(c.index))
	}
	return assembleDevice(c.arch, c.index, c.paths, l.devfs, l.sysfs, l.prober)
}

func (l *Lister) getDeviceFile(name string) (DeviceFile, error) {
	for _, arch := range Archs() {
		path := filepath.Join(arch.DevfilePath(l.devfs), name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return DeviceFile{}, fromIOError(err)
		}

		if !l.fileTypePolicy(info.Mode().Type()) {
			return DeviceFile{}, invalidDeviceFile(path)
		}

		canonical, err := canonicalize(path)
		if err != nil {
			return DeviceFile{}, err
		}
		return NewDeviceFile(canonical)
	}
	return DeviceFile{}, deviceNotFound(name)
}

func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fromIOError(err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fromIOError(err)
	}
	return abs, nil
}

func collectAssembled(assembled []*Device) []Device {
	devices := make([]Device, 0, len(assembled))
	for _, device := range assembled {
		if device != nil {
			devices = append(devices, *device)
		}
	}
	sortDevices(devices)
	return devices
}

func sortDevices(devices []Device) {
	slices.SortStableFunc(devices, func(a, b Device) int {
		return int(a.index) - int(b.index)
	})
}

func findDevice(devices []Device, idx uint8) (Device, error) {
	for _, device := range devices {
		if device.DeviceIndex() == idx {
			return device, nil
		}
	}
	return Device{}, deviceNotFound(fmtDeviceName(idx))
}
