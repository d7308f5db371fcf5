package prediction

import "github.com/prometheus/client_golang/prometheus"

// Prometheus forecasting metrics.
var (
	forecastsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldcast_forecasts_generated_total",
			Help: "Total number of forecasts generated and stored.",
		},
		[]string{"activity", "method"},
	)
	forecastsInsufficient = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldcast_forecast_insufficient_total",
			Help: "Forecast requests rejected for insufficient history.",
		},
		[]string{"activity"},
	)
	forecastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fieldcast_forecast_duration_seconds",
			Help:    "Time spent computing one forecast, including parameter search.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)
	forecastMAPE = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fieldcast_forecast_mape_percent",
			Help:    "MAPE of generated forecasts over their test window.",
			Buckets: []float64{5, 10, 20, 30, 50, 75, 100, 200},
		},
	)
)

func init() {
	prometheus.MustRegister(forecastsGenerated)
	prometheus.MustRegister(forecastsInsufficient)
	prometheus.MustRegister(forecastDuration)
	prometheus.MustRegister(forecastMAPE)
}
