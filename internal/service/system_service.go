package service

import (
	"database/sql"

	"github.com/equinoxcap/investor-portal-backend/internal/database"
)

// Version is the reported application version, overridable at build time
// with -ldflags.
var Version = "dev"

// SystemService exposes health and version information.
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService.
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{db: db}
}

// Health checks that the database is reachable.
func (s *SystemService) Health() error {
	return database.HealthCheck(s.db)
}

// VersionInfo describes the running build.
type VersionInfo struct {
	Version string `json:"version"`
}

// GetVersionInfo returns the running build's version.
func (s *SystemService) GetVersionInfo() VersionInfo {
	return VersionInfo{Version: Version}
}
