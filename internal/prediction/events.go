package prediction

// Event topics consumed by the prediction module.
const (
	TopicReportCreated = "roster.report.created"
)

// Event topics published by the prediction module.
const (
	// TopicForecastGenerated carries the stored analytics.ForecastRecord.
	TopicForecastGenerated = "prediction.forecast.generated"
	// TopicForecastsPruned carries the number of deleted records as int64.
	TopicForecastsPruned = "prediction.forecasts.pruned"
)
