package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"shelfkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-t int      session TTL, hours
//	-m int      maximum sessions per user
//	-w int      expired-session sweep interval, minutes
//	-q int      audit queue size
//	-h string   comma-separated roles allowed to send scope hints
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-m", "-w", "-q", "-h"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	sessionTTLHours := fs.Int("t", int(config.SessionTTL.Hours()), "session TTL (in hours)")
	fs.IntVar(&config.MaxSessionsPerUser, "m", config.MaxSessionsPerUser, "maximum sessions per user")
	sweepMinutes := fs.Int("w", int(config.SessionSweepInterval.Minutes()), "session sweep interval (in minutes)")
	fs.IntVar(&config.AuditQueueSize, "q", config.AuditQueueSize, "audit queue size")

	hintRoles := fs.String("h", strings.Join(config.ScopeHintRoles, ","), "roles allowed to send scope hints")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTTL = time.Duration(*sessionTTLHours) * time.Hour
	config.SessionSweepInterval = time.Duration(*sweepMinutes) * time.Minute
	config.ScopeHintRoles = splitRoles(*hintRoles)
}

func splitRoles(s string) []string {
	parts := strings.Split(s, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}
