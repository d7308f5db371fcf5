package roster

// Config holds configuration for the roster plugin.
type Config struct {
	// RotationDays is the number of days each group's turn lasts. The
	// next work date of a group is the latest report date plus its
	// rotation distance times RotationDays.
	RotationDays int `mapstructure:"rotation_days"`
	DefaultLimit int `mapstructure:"default_limit"`
}

// DefaultConfig returns the roster defaults: daily rotation.
func DefaultConfig() Config {
	return Config{
		RotationDays: 1,
		DefaultLimit: 100,
	}
}
