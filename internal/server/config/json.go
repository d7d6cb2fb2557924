package config

import (
	"encoding/json"
	"os"
	"time"

	"shelfkeeper/internal/flagx"
	"shelfkeeper/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields, which accepts both string
// values such as "10m" and integer nanoseconds. After unmarshalling, set
// fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP     *string         `json:"endpoint_addr_http"`
	DatabaseDSN          *string         `json:"database_dsn"`
	SessionTTL           *timex.Duration `json:"session_ttl"`
	MaxSessionsPerUser   *int            `json:"max_sessions_per_user"`
	SessionSweepInterval *timex.Duration `json:"session_sweep_interval"`
	AuditQueueSize       *int            `json:"audit_queue_size"`
	ScopeHintRoles       []string        `json:"scope_hint_roles"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config flags (or the
// CONFIG environment variable); when unset, no JSON file is loaded. Absent
// fields keep their current values. An unreadable or invalid file panics,
// matching the fail-fast flag handling.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != nil {
		config.EndpointAddrHTTP = *c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.SessionTTL != nil {
		config.SessionTTL = time.Duration(c.SessionTTL.Duration)
	}
	if c.MaxSessionsPerUser != nil {
		config.MaxSessionsPerUser = *c.MaxSessionsPerUser
	}
	if c.SessionSweepInterval != nil {
		config.SessionSweepInterval = time.Duration(c.SessionSweepInterval.Duration)
	}
	if c.AuditQueueSize != nil {
		config.AuditQueueSize = *c.AuditQueueSize
	}
	if c.ScopeHintRoles != nil {
		config.ScopeHintRoles = c.ScopeHintRoles
	}
}
