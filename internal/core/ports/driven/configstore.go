package driven

// ConfigStore provides access to persisted configuration.
// Keys are dotted paths such as "store.backend" or "router.fan_out".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString returns "" if the key is missing or not a string.
	GetString(key string) string

	// GetInt returns 0 if the key is missing or not numeric.
	GetInt(key string) int

	// GetFloat returns 0 if the key is missing or not numeric.
	GetFloat(key string) float64

	// GetBool returns false if the key is missing or not a boolean.
	GetBool(key string) bool

	// Set stores a configuration value in memory; call Save to persist it.
	Set(key string, value any) error

	// Save persists the current configuration to storage.
	Save() error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
