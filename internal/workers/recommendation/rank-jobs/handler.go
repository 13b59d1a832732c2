// internal/workers/recommendation/rank-jobs/handler.go
package rankjobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"jobmatch-workers/internal/catalog"
	stderrors "jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/common/metrics"
	"jobmatch-workers/internal/profile"
	"jobmatch-workers/internal/scoring"
)

const (
	TaskType = "rank-jobs"
)

// Handler ranks the posting catalog for one student. The result is advisory
// and cached briefly in redis; the database stays the source of truth.
type Handler struct {
	engine   *scoring.Engine
	profiles profile.Store
	catalog  catalog.Catalog
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
	timeout  time.Duration
}

func NewHandler(
	config *Config,
	engine *scoring.Engine,
	profiles profile.Store,
	cat catalog.Catalog,
	cache *redis.Client,
	log logger.Logger,
) *Handler {
	return &Handler{
		engine:   engine,
		profiles: profiles,
		catalog:  cat,
		cache:    cache,
		cacheTTL: config.RankCacheTTL,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		timeout:  config.Timeout,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		code := stderrors.CodeOf(err)
		if code == "" {
			code = "UNKNOWN_ERROR"
		}
		h.failJob(client, job, string(code), err.Error())
		return nil
	}

	h.completeJob(client, job, output)
	return nil
}

// Execute ranks postings for the student. Exposed for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.StudentID == "" {
		return nil, stderrors.NewValidationFailedError("studentId is required")
	}

	timer := prometheus.NewTimer(metrics.ScoringDuration.WithLabelValues("rank"))
	defer timer.ObserveDuration()

	studentProfile, err := h.profiles.GetProfile(ctx, input.StudentID)
	if err != nil {
		return nil, err
	}

	postings, err := h.catalog.ListPostings(ctx, catalog.Filter{
		Query:    input.Query,
		Location: input.Location,
		Limit:    input.Limit,
	})
	if err != nil {
		return nil, err
	}

	ranked := h.engine.Rank(studentProfile, postings)

	jobs := make([]RankedJob, 0, len(ranked))
	for _, r := range ranked {
		jobs = append(jobs, RankedJob{
			JobID:             r.Posting.ID,
			Title:             r.Posting.Title,
			Company:           r.Posting.Company,
			Total:             r.Score.Total,
			SkillComponent:    r.Score.SkillComponent,
			LocationComponent: r.Score.LocationComponent,
			SalaryComponent:   r.Score.SalaryComponent,
		})
	}

	output := &Output{
		StudentID:  input.StudentID,
		RankedJobs: jobs,
		Count:      len(jobs),
		RankedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	h.cacheRanking(ctx, output)

	h.logger.Info("ranking computed", map[string]interface{}{
		"studentId": input.StudentID,
		"postings":  len(postings),
	})
	return output, nil
}

// cacheRanking is best-effort; rankings are recomputable on demand.
func (h *Handler) cacheRanking(ctx context.Context, output *Output) {
	if h.cache == nil {
		return
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, "ranking:"+output.StudentID, raw, h.cacheTTL).Err(); err != nil {
		h.logger.Warn("ranking cache write failed", map[string]interface{}{
			"studentId": output.StudentID,
			"error":     err.Error(),
		})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}
