package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianbank/meridianbank/internal/accrual"
	"github.com/meridianbank/meridianbank/internal/daycount"
	"github.com/meridianbank/meridianbank/internal/jobs"
)

const (
	// TaskAccrualDaily posts daily interest for DDS accounts and logs the
	// fixed-deposit accrual snapshot.
	TaskAccrualDaily = "accrual:daily"
	// TaskAccrualRecurring posts the prior month's recurring-deposit
	// interest.
	TaskAccrualRecurring = "accrual:recurring"
)

// AccrualPayload carries scheduling metadata for the accrual tasks.
type AccrualPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAccrualDailyTask constructs the daily accrual task.
func NewAccrualDailyTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AccrualPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccrualDaily, body, asynq.Queue(QueueDefault)), nil
}

// NewAccrualRecurringTask constructs the recurring accrual task.
func NewAccrualRecurringTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AccrualPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccrualRecurring, body, asynq.Queue(QueueDefault)), nil
}

// AccrualJobs binds the accrual engine to the asynq task handlers.
type AccrualJobs struct {
	engine  *accrual.Engine
	metrics *jobs.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAccrualJobs constructs the accrual job handlers. metrics may be nil.
func NewAccrualJobs(engine *accrual.Engine, metrics *jobs.Metrics, logger *slog.Logger) *AccrualJobs {
	return &AccrualJobs{engine: engine, metrics: metrics, logger: logger, now: time.Now}
}

// HandleDaily runs the daily-deposit crediting pass and the fixed-deposit
// snapshot pass for the scheduled day. Batch-level failures are retried by
// asynq; per-account failures are absorbed into the run report.
func (j *AccrualJobs) HandleDaily(ctx context.Context, t *asynq.Task) error {
	var payload AccrualPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.ScheduledFor
	if asOf.IsZero() {
		asOf = j.now()
	}
	asOf = daycount.Truncate(asOf)

	tracker := j.metrics.Track(TaskAccrualDaily)
	daily, err := j.engine.RunDaily(ctx, asOf)
	tracker.End(daily, err)
	if err != nil {
		return err
	}
	j.logger.Info("daily accrual finished",
		slog.Time("as_of", asOf),
		slog.Int("processed", daily.Processed),
		slog.Int("succeeded", daily.Succeeded),
		slog.Int("failed", daily.Failed))

	tracker = j.metrics.Track("accrual:fixed_term")
	fixed, err := j.engine.RunFixedTerm(ctx, asOf)
	tracker.End(fixed, err)
	if err != nil {
		return err
	}
	j.logger.Info("fixed-term accrual finished",
		slog.Time("as_of", asOf),
		slog.Int("processed", fixed.Processed),
		slog.Int("succeeded", fixed.Succeeded),
		slog.Int("failed", fixed.Failed))

	if daily.Failed > 0 || fixed.Failed > 0 {
		// Surface partial failure so the run shows up in asynq's failed set;
		// the watermark keeps the retry idempotent for accounts that
		// already posted.
		return errors.New("accrual: daily run had account-level failures")
	}
	return nil
}

// HandleRecurring posts recurring-deposit interest for the calendar month
// preceding the scheduled date.
func (j *AccrualJobs) HandleRecurring(ctx context.Context, t *asynq.Task) error {
	var payload AccrualPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.ScheduledFor
	if asOf.IsZero() {
		asOf = j.now()
	}
	_, monthEnd := daycount.PreviousMonthBounds(daycount.Truncate(asOf))

	tracker := j.metrics.Track(TaskAccrualRecurring)
	report, err := j.engine.RunRecurring(ctx, monthEnd)
	tracker.End(report, err)
	if err != nil {
		return err
	}
	j.logger.Info("recurring accrual finished",
		slog.Time("month_end", monthEnd),
		slog.Int("processed", report.Processed),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed))

	if report.Failed > 0 {
		return errors.New("accrual: recurring run had account-level failures")
	}
	return nil
}
