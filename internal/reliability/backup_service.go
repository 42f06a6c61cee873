package reliability

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/pkg/logger"
)

// BackupService produces consistent on-disk copies of the live databases
// using SQLite's VACUUM INTO
type BackupService struct {
	databases map[string]*database.DB // keyed by logical name (universe, history, analysis)
	log       zerolog.Logger
}

// NewBackupService creates a backup service over the given databases
func NewBackupService(databases map[string]*database.DB, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		log:       logger.Service(log, "backup"),
	}
}

// DatabaseNames returns the logical database names in stable order
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackupDatabase writes a consistent copy of one database to destPath
func (s *BackupService) BackupDatabase(name, destPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("unknown database %q", name)
	}

	if err := db.BackupTo(destPath); err != nil {
		return fmt.Errorf("failed to backup %s: %w", name, err)
	}

	s.log.Debug().Str("database", name).Str("dest", destPath).Msg("Database backed up")
	return nil
}
