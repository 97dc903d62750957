package config

// RPC configures the JSON-RPC listener.
type RPC struct {
	// JWTSecret enables bearer authentication for write methods when set.
	// JWTSecretEnv names an environment variable to read it from instead.
	JWTSecret    string `toml:"JWTSecret"`
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	JWTIssuer    string `toml:"JWTIssuer"`
	// RequestsPerMinute and Burst throttle each client address. Zero disables
	// throttling.
	RequestsPerMinute int `toml:"RequestsPerMinute"`
	Burst             int `toml:"Burst"`
	ReadTimeout       int `toml:"ReadTimeoutSeconds"`
	WriteTimeout      int `toml:"WriteTimeoutSeconds"`
	MaxBodyBytes      int64 `toml:"MaxBodyBytes"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Log configures structured logging.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Index configures the reward history database. DSN is a postgres URL or a
// sqlite path; empty disables indexing.
type Index struct {
	DSN string `toml:"DSN"`
}
