package prediction

import "time"

// Config holds configuration for the prediction plugin. Forecasting
// policies live in the same section under "policies" and are loaded by
// policy.Load.
type Config struct {
	// AutoRegenerate refreshes a forecast whenever a report for its group
	// and activity is filed.
	AutoRegenerate      bool          `mapstructure:"auto_regenerate"`
	Retention           time.Duration `mapstructure:"retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	GenerateTimeout     time.Duration `mapstructure:"generate_timeout"`
	DefaultLimit        int           `mapstructure:"default_limit"`
}

// DefaultConfig returns sensible defaults for the prediction module.
func DefaultConfig() Config {
	return Config{
		AutoRegenerate:      true,
		Retention:           90 * 24 * time.Hour,
		MaintenanceInterval: 1 * time.Hour,
		GenerateTimeout:     30 * time.Second,
		DefaultLimit:        50,
	}
}
