package exporter

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device"
)

var (
	aliveDesc = prometheus.NewDesc(
		"furiosa_npu_alive",
		"Whether the NPU reports itself alive",
		[]string{"device", "arch", "uuid"}, nil,
	)

	heartbeatDesc = prometheus.NewDesc(
		"furiosa_npu_heartbeat",
		"Last heartbeat counter read from the NPU",
		[]string{"device", "arch", "uuid"}, nil,
	)

	coreStatusDesc = prometheus.NewDesc(
		"furiosa_npu_core_status",
		"Current status of an NPU core, 1 for the status the core is in",
		[]string{"device", "arch", "core", "status"}, nil,
	)

	deviceInfoDesc = prometheus.NewDesc(
		"furiosa_npu_device_info",
		"Static attributes of an NPU",
		[]string{"device", "arch", "uuid", "serial", "firmware", "driver"}, nil,
	)

	coreStatusTypes = []device.CoreStatusType{
		device.CoreStatusAvailable,
		device.CoreStatusOccupied,
		device.CoreStatusUnavailable,
	}
)

var _ prometheus.Collector = (*Collector)(nil)

// Collector enumerates devices on every scrape.
type Collector struct {
	lister  *device.Lister
	timeout time.Duration
	logger  zerolog.Logger
}

func NewCollector(lister *device.Lister, timeout time.Duration, logger zerolog.Logger) *Collector {
	return &Collector{
		lister:  lister,
		timeout: timeout,
		logger:  logger,
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- aliveDesc
	ch <- heartbeatDesc
	ch <- coreStatusDesc
	ch <- deviceInfoDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(c.logger.WithContext(context.Background()), c.timeout)
	defer cancel()

	devices, err := c.lister.ListDevices(ctx)
	if err != nil {
		c.logger.Err(err).Msg("couldn't list devices")
		return
	}

	for _, d := range devices {
		c.collectDevice(ctx, ch, d)
	}
}

func (c *Collector) collectDevice(ctx context.Context, ch chan<- prometheus.Metric, d device.Device) {
	name, arch, uuid := d.Name(), d.Arch().String(), d.DeviceUUID()
	logger := c.logger.With().Str("device", name).Logger()

	ch <- prometheus.MustNewConstMetric(deviceInfoDesc, prometheus.GaugeValue, 1,
		name, arch, uuid, d.DeviceSN(), d.FirmwareVersion(), d.DriverVersion())

	if alive, err := d.Alive(); err != nil {
		logger.Err(err).Msg("couldn't read liveness")
	} else {
		ch <- prometheus.MustNewConstMetric(aliveDesc, prometheus.GaugeValue, boolToFloat(alive), name, arch, uuid)
	}

	if heartbeat, err := d.Heartbeat(); err != nil {
		logger.Err(err).Msg("couldn't read heartbeat")
	} else {
		ch <- prometheus.MustNewConstMetric(heartbeatDesc, prometheus.GaugeValue, float64(heartbeat), name, arch, uuid)
	}

	statuses, err := d.StatusOfAll(ctx)
	if err != nil {
		logger.Err(err).Msg("couldn't resolve core statuses")
		return
	}

	for _, core := range d.Cores() {
		current := statuses[core].Type
		for _, statusType := range coreStatusTypes {
			ch <- prometheus.MustNewConstMetric(coreStatusDesc, prometheus.GaugeValue, boolToFloat(current == statusType),
				name, arch, strconv.Itoa(int(core)), string(statusType))
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
