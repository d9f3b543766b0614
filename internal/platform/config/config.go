package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process level configuration for the compliance engine.
type Server struct {
	Addr        string
	Environment string

	// SQLitePath selects the durable record store. Empty means in-memory.
	SQLitePath string

	// ArtifactDir selects the filesystem artifact store. Empty means in-memory.
	ArtifactDir string

	// ExportTTL is how long a completed export artifact remains downloadable.
	ExportTTL time.Duration

	// ExportStaleness is the age past which a Pending export is re-enqueued
	// and a Processing export is surfaced as stuck.
	ExportStaleness time.Duration

	// AnonymizeFields are the record fields replaced with placeholders when a
	// deletion request targets user profiles.
	AnonymizeFields []string

	// Cron schedules for the background sweeps.
	RetentionSchedule     string
	ExportCleanupSchedule string
	ConsentExpirySchedule string
	DeletionSweepSchedule string
	ExportRequeueSchedule string
}

const (
	defaultExportTTL       = 7 * 24 * time.Hour
	defaultExportStaleness = time.Hour
)

// defaultAnonymizeFields is a reasonable redaction set; override via
// ANONYMIZE_FIELDS when a workspace stores identifying data under other keys.
var defaultAnonymizeFields = []string{"name", "email", "phone", "address", "ip"}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                  envOr("CUSTODIAN_ADDR", ":8080"),
		Environment:           envOr("CUSTODIAN_ENV", "development"),
		SQLitePath:            os.Getenv("CUSTODIAN_SQLITE_PATH"),
		ArtifactDir:           os.Getenv("CUSTODIAN_ARTIFACT_DIR"),
		ExportTTL:             durationOr("EXPORT_TTL", defaultExportTTL),
		ExportStaleness:       durationOr("EXPORT_STALENESS", defaultExportStaleness),
		AnonymizeFields:       defaultAnonymizeFields,
		RetentionSchedule:     envOr("RETENTION_SCHEDULE", "0 3 * * *"),
		ExportCleanupSchedule: envOr("EXPORT_CLEANUP_SCHEDULE", "30 3 * * *"),
		ConsentExpirySchedule: envOr("CONSENT_EXPIRY_SCHEDULE", "0 4 * * *"),
		DeletionSweepSchedule: envOr("DELETION_SWEEP_SCHEDULE", "0 * * * *"),
		ExportRequeueSchedule: envOr("EXPORT_REQUEUE_SCHEDULE", "30 * * * *"),
	}

	if fields := os.Getenv("ANONYMIZE_FIELDS"); fields != "" {
		var parsed []string
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				parsed = append(parsed, f)
			}
		}
		if len(parsed) > 0 {
			cfg.AnonymizeFields = parsed
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
