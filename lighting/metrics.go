package lighting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ttglow"

var (
	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "rounds_total",
		Help:      "Total lighting loop rounds completed",
	})

	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "round_duration_seconds",
		Help:      "Time spent computing and writing frames for one round",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "frames_total",
		Help:      "Total frames written per device",
	}, []string{"device"})

	deviceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "device_errors_total",
		Help:      "Total frame writes that failed",
	})

	sensorFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sensor_faults_total",
		Help:      "Total rounds whose effect failed to read its sensor",
	})

	brightnessPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "brightness_percent",
		Help:      "Brightness of the active controller",
	})

	refreshIntervalSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "refresh_interval_seconds",
		Help:      "Refresh interval of the active controller",
	})

	temperatureCelsius = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "temperature_celsius",
		Help:      "Last temperature read by a temperature effect",
	}, []string{"sensor"})

	temperatureAngle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "temperature_angle_degrees",
		Help:      "Compass angle computed from the last temperature",
	}, []string{"sensor"})
)
