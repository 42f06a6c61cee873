package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/modules/activation"
	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/labeling"
	"github.com/aristath/pivotscope/internal/modules/patterns"
	"github.com/aristath/pivotscope/internal/modules/snapshots"
	"github.com/aristath/pivotscope/internal/reliability"
)

// jobTimeout bounds every scheduled run; batch passes over the full universe
// normally finish well inside it
const jobTimeout = 30 * time.Minute

// PriceSyncJob pulls the latest daily bars for all active securities
type PriceSyncJob struct {
	svc *history.SyncService
	log zerolog.Logger
}

// NewPriceSyncJob creates a price sync job
func NewPriceSyncJob(svc *history.SyncService, log zerolog.Logger) *PriceSyncJob {
	return &PriceSyncJob{svc: svc, log: log.With().Str("job", "price_sync").Logger()}
}

func (j *PriceSyncJob) Name() string { return "price_sync" }

func (j *PriceSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.svc.Sync(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Int("synced", result.Synced).Int("failed", result.Failed).Msg("Price sync finished")
	return nil
}

// LabelingJob classifies today's bar for every active security
type LabelingJob struct {
	svc *labeling.Service
	now func() time.Time
	log zerolog.Logger
}

// NewLabelingJob creates a labeling job
func NewLabelingJob(svc *labeling.Service, log zerolog.Logger) *LabelingJob {
	return &LabelingJob{svc: svc, now: time.Now, log: log.With().Str("job", "labeling").Logger()}
}

func (j *LabelingJob) Name() string { return "labeling" }

func (j *LabelingJob) Run() error {
	date := j.now().UTC().Format("2006-01-02")
	result, err := j.svc.LabelDate(date)
	if err != nil {
		return err
	}
	j.log.Info().Str("date", date).Int("labeled", result.Labeled).Int("skipped", result.Skipped).Msg("Labeling finished")
	return nil
}

// AnalysisJob runs the full subpattern extraction and forecasting pass
type AnalysisJob struct {
	svc *patterns.AnalysisService
}

// NewAnalysisJob creates an analysis job
func NewAnalysisJob(svc *patterns.AnalysisService) *AnalysisJob {
	return &AnalysisJob{svc: svc}
}

func (j *AnalysisJob) Name() string { return "analysis" }

func (j *AnalysisJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err := j.svc.Run(ctx)
	return err
}

// ActivationJob rescores the universe and rebalances the active set
type ActivationJob struct {
	svc *activation.Service
}

// NewActivationJob creates an activation job
func NewActivationJob(svc *activation.Service) *ActivationJob {
	return &ActivationJob{svc: svc}
}

func (j *ActivationJob) Name() string { return "activation" }

func (j *ActivationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err := j.svc.Run(ctx)
	return err
}

// SnapshotJob records this month's buy-zone snapshot
type SnapshotJob struct {
	svc *snapshots.Service
}

// NewSnapshotJob creates a snapshot job
func NewSnapshotJob(svc *snapshots.Service) *SnapshotJob {
	return &SnapshotJob{svc: svc}
}

func (j *SnapshotJob) Name() string { return "snapshot" }

func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err := j.svc.Run(ctx)
	return err
}

// BackupJob archives all databases to R2 and prunes old archives
type BackupJob struct {
	svc  *reliability.R2BackupService
	keep int
}

// NewBackupJob creates a backup job keeping the given number of archives
func NewBackupJob(svc *reliability.R2BackupService, keep int) *BackupJob {
	return &BackupJob{svc: svc, keep: keep}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := j.svc.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.svc.PruneBackups(ctx, j.keep)
}
