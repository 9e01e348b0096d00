package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nearby-backend/internal/domain"
	"github.com/yungbote/nearby-backend/internal/pkg/dbctx"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

type EnqueueOutcome string

const (
	// EnqueueCreated means a new row was inserted.
	EnqueueCreated EnqueueOutcome = "created"
	// EnqueueRearmed means a completed or parked row was put back in the queue.
	EnqueueRearmed EnqueueOutcome = "rearmed"
	// EnqueuePromoted means a queued row had its priority raised.
	EnqueuePromoted EnqueueOutcome = "promoted"
	// EnqueueDeduped means an equivalent job is already pending or in flight.
	EnqueueDeduped EnqueueOutcome = "deduped"
)

func (o EnqueueOutcome) Scheduled() bool {
	return o == EnqueueCreated || o == EnqueueRearmed || o == EnqueuePromoted
}

type AnalysisJobRepo interface {
	Enqueue(dbc dbctx.Context, job *types.AnalysisJob) (EnqueueOutcome, error)
	GetByID(dbc dbctx.Context, id string) (*types.AnalysisJob, error)
	ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.AnalysisJob, error)
	ClaimByID(dbc dbctx.Context, id string, staleRunning time.Duration) (*types.AnalysisJob, error)
	Heartbeat(dbc dbctx.Context, id string) error
	MarkCompleted(dbc dbctx.Context, id string, result []byte) error
	// MarkFailed records a failure. Once attempts reach the cap the row is
	// parked instead and the returned bool is true.
	MarkFailed(dbc dbctx.Context, id string, errMsg string, retryDelay time.Duration) (bool, error)
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
}

type analysisJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisJobRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisJobRepo {
	return &analysisJobRepo{
		db:  db,
		log: baseLog.With("repo", "AnalysisJobRepo"),
	}
}

// Enqueue is the single dedup point. Concurrent calls with the same id land
// on one row: the insert is ON CONFLICT DO NOTHING, and only finished rows
// are re-armed.
func (r *analysisJobRepo) Enqueue(dbc dbctx.Context, job *types.AnalysisJob) (EnqueueOutcome, error) {
	if job == nil || job.ID == "" {
		return EnqueueDeduped, nil
	}
	now := time.Now().UTC()
	if job.Status == "" {
		job.Status = types.JobStatusQueued
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 1
	}
	transaction := dbc.DB(r.db)

	res := transaction.
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(job)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected > 0 {
		return EnqueueCreated, nil
	}

	res = transaction.
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status IN ?", job.ID, []string{types.JobStatusCompleted, types.JobStatusParked}).
		Updates(map[string]interface{}{
			"status":        types.JobStatusQueued,
			"kind":          job.Kind,
			"owner_user_id": job.OwnerUserID,
			"priority":      job.Priority,
			"payload":       job.Payload,
			"attempts":      0,
			"max_attempts":  job.MaxAttempts,
			"error":         "",
			"run_after":     nil,
			"locked_at":     nil,
			"heartbeat_at":  nil,
			"completed_at":  nil,
			"updated_at":    now,
		})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected > 0 {
		return EnqueueRearmed, nil
	}

	res = transaction.
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status = ? AND priority < ?", job.ID, types.JobStatusQueued, job.Priority).
		Updates(map[string]interface{}{
			"priority":   job.Priority,
			"updated_at": now,
		})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected > 0 {
		return EnqueuePromoted, nil
	}
	return EnqueueDeduped, nil
}

func (r *analysisJobRepo) GetByID(dbc dbctx.Context, id string) (*types.AnalysisJob, error) {
	if id == "" {
		return nil, nil
	}
	var out []*types.AnalysisJob
	if err := dbc.DB(r.db).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *analysisJobRepo) ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.AnalysisJob, error) {
	return r.claim(dbc, "", staleRunning)
}

// ClaimByID claims one specific row if it is runnable. Used when an external
// dispatcher already decided which job to run.
func (r *analysisJobRepo) ClaimByID(dbc dbctx.Context, id string, staleRunning time.Duration) (*types.AnalysisJob, error) {
	if id == "" {
		return nil, nil
	}
	return r.claim(dbc, id, staleRunning)
}

func (r *analysisJobRepo) claim(dbc dbctx.Context, id string, staleRunning time.Duration) (*types.AnalysisJob, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.AnalysisJob
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var rows []*types.AnalysisJob
		q := txx
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if id != "" {
			q = q.Where("id = ?", id)
		}
		q = q.Where(`
        (
          (
            status = ?
            AND (run_after IS NULL OR run_after <= ?)
          )
          OR (
            status = ?
            AND attempts < max_attempts
            AND (run_after IS NULL OR run_after <= ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.JobStatusQueued, now, types.JobStatusFailed, now, types.JobStatusRunning, staleCutoff).
			Order("priority DESC").
			Order("created_at ASC").
			Limit(1)
		if qErr := q.Find(&rows).Error; qErr != nil {
			return qErr
		}
		if len(rows) == 0 {
			return nil
		}
		job := rows[0]
		// The status guard keeps a second claimer from winning on stores
		// without row locks.
		res := txx.Model(&types.AnalysisJob{}).
			Where("id = ? AND status = ? AND attempts = ?", job.ID, job.Status, job.Attempts).
			Updates(map[string]interface{}{
				"status":       types.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = types.JobStatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *analysisJobRepo) Heartbeat(dbc dbctx.Context, id string) error {
	if id == "" {
		return nil
	}
	now := time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *analysisJobRepo) MarkCompleted(dbc dbctx.Context, id string, result []byte) error {
	if id == "" {
		return nil
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       types.JobStatusCompleted,
		"error":        "",
		"completed_at": now,
		"heartbeat_at": now,
		"updated_at":   now,
	}
	if len(result) > 0 {
		updates["result"] = result
	}
	return dbc.DB(r.db).
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(updates).Error
}

func (r *analysisJobRepo) MarkFailed(dbc dbctx.Context, id string, errMsg string, retryDelay time.Duration) (bool, error) {
	if id == "" {
		return false, nil
	}
	now := time.Now().UTC()
	parked := false
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var rows []*types.AnalysisJob
		if err := txx.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.New("analysis job not found: " + id)
		}
		job := rows[0]
		updates := map[string]interface{}{
			"error":         errMsg,
			"last_error_at": now,
			"updated_at":    now,
		}
		if job.Attempts >= job.MaxAttempts {
			parked = true
			updates["status"] = types.JobStatusParked
			updates["run_after"] = nil
		} else {
			updates["status"] = types.JobStatusFailed
			updates["run_after"] = now.Add(Backoff(retryDelay, job.Attempts))
		}
		return txx.Model(&types.AnalysisJob{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return false, err
	}
	return parked, nil
}

func (r *analysisJobRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := dbc.DB(r.db).
		Model(&types.AnalysisJob{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rr := range rows {
		out[rr.Status] = rr.N
	}
	return out, nil
}

// Backoff doubles base per prior attempt, capped at 64x.
func Backoff(base time.Duration, attempts int) time.Duration {
	if base <= 0 {
		return 0
	}
	shift := attempts - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 6 {
		shift = 6
	}
	return base * time.Duration(1<<uint(shift))
}
