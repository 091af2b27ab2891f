package api

import (
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hostpulse"

// telemetryCollector exports the latest published snapshot as gauges on
// every scrape.
type telemetryCollector struct {
	telemetry Telemetry

	cpu             *prometheus.Desc
	ram             *prometheus.Desc
	gpu             *prometheus.Desc
	network         *prometheus.Desc
	driveFree       *prometheus.Desc
	driveUsed       *prometheus.Desc
	appMemory       *prometheus.Desc
	appInstances    *prometheus.Desc
	profileActive   *prometheus.Desc
	updateAvailable *prometheus.Desc
}

func newTelemetryCollector(telemetry Telemetry) *telemetryCollector {
	return &telemetryCollector{
		telemetry: telemetry,
		cpu: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "cpu_utilization_percent"),
			"CPU load percentage.", nil, nil),
		ram: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "ram_utilization_percent"),
			"Memory in use as a percentage of total.", nil, nil),
		gpu: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "gpu_utilization_percent"),
			"GPU load percentage, 0 when unavailable.", nil, nil),
		network: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "network", "throughput_mbps"),
			"Measured network throughput in megabits per second.", []string{"direction"}, nil),
		driveFree: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "drive", "free_gb"),
			"Free space per mounted volume.", []string{"mountpoint"}, nil),
		driveUsed: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "drive", "used_percent"),
			"Used space percentage per mounted volume.", []string{"mountpoint"}, nil),
		appMemory: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "app", "memory_mb"),
			"Memory of the top applications.", []string{"app", "category"}, nil),
		appInstances: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "app", "instances"),
			"Running instances of the top applications.", []string{"app", "category"}, nil),
		profileActive: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "profile", "active"),
			"1 for the usage profile in effect.", []string{"profile", "mode"}, nil),
		updateAvailable: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "update", "available"),
			"1 when a newer release was found.", nil, nil),
	}
}

func (c *telemetryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpu
	ch <- c.ram
	ch <- c.gpu
	ch <- c.network
	ch <- c.driveFree
	ch <- c.driveUsed
	ch <- c.appMemory
	ch <- c.appInstances
	ch <- c.profileActive
	ch <- c.updateAvailable
}

func (c *telemetryCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.telemetry.Latest()

	ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, snapshot.Utilization.CPU)
	ch <- prometheus.MustNewConstMetric(c.ram, prometheus.GaugeValue, snapshot.Utilization.RAM)
	ch <- prometheus.MustNewConstMetric(c.gpu, prometheus.GaugeValue, snapshot.Utilization.GPU)

	ch <- prometheus.MustNewConstMetric(c.network, prometheus.GaugeValue, snapshot.Network.DownloadMbps, "download")
	ch <- prometheus.MustNewConstMetric(c.network, prometheus.GaugeValue, snapshot.Network.UploadMbps, "upload")

	seenMounts := make(map[string]bool, len(snapshot.Storage))
	for _, d := range snapshot.Storage {
		if seenMounts[d.Mountpoint] {
			continue
		}
		seenMounts[d.Mountpoint] = true
		ch <- prometheus.MustNewConstMetric(c.driveFree, prometheus.GaugeValue, d.FreeGB, d.Mountpoint)
		ch <- prometheus.MustNewConstMetric(c.driveUsed, prometheus.GaugeValue, d.UsedPercent, d.Mountpoint)
	}

	for _, app := range snapshot.Activity {
		ch <- prometheus.MustNewConstMetric(c.appMemory, prometheus.GaugeValue, app.MemoryMB, app.Key, string(app.Category))
		ch <- prometheus.MustNewConstMetric(c.appInstances, prometheus.GaugeValue, float64(app.Instances), app.Key, string(app.Category))
	}

	active := snapshot.Profile.Active()
	mode := string(snapshot.Profile.Mode)
	if mode == "" {
		mode = string(models.ModeAuto)
	}
	for _, p := range []models.UsageProfile{models.ProfileGaming, models.ProfileCreative, models.ProfileBrowsing, models.ProfileBalanced} {
		v := 0.0
		if p == active {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.profileActive, prometheus.GaugeValue, v, string(p), mode)
	}

	available := 0.0
	if snapshot.Update != nil && snapshot.Update.HasUpdate {
		available = 1
	}
	ch <- prometheus.MustNewConstMetric(c.updateAvailable, prometheus.GaugeValue, available)
}
