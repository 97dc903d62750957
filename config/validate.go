package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must be set")
	}
	if err := c.Reward.Validate(); err != nil {
		return fmt.Errorf("Reward: %w", err)
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("RPC: rate limits must not be negative")
	}
	if c.RPC.RequestsPerMinute > 0 && c.RPC.Burst == 0 {
		return fmt.Errorf("RPC: Burst must be positive when RequestsPerMinute is set")
	}
	if c.RPC.ReadTimeout < 0 || c.RPC.WriteTimeout < 0 || c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("RPC: timeouts and body limit must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("Telemetry: SampleRatio must be within [0,1]")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("Telemetry: Endpoint required when exporting")
	}
	return nil
}
