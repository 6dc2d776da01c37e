package types

// Telemetry metric names. Components use these constants.
const (
	MetricAPILatency         = "APILatency"
	MetricAPIRequestCount    = "APIRequestCount"
	MetricLookup             = "RiskLookup"
	MetricForecastAvailable  = "ForecastAvailable"
	MetricExternalAPIFailure = "ExternalAPIFailure"

	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimAction   = "Action"
	DimResult   = "Result"

	MetricNamespace = "SkyRisk"
)
