package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/cee-allot-api/internal/allot"
	"github.com/noah-isme/cee-allot-api/internal/dto"
	"github.com/noah-isme/cee-allot-api/internal/models"
	"github.com/noah-isme/cee-allot-api/internal/repository"
	appErrors "github.com/noah-isme/cee-allot-api/pkg/errors"
	"github.com/noah-isme/cee-allot-api/pkg/jobs"
)

type runStore interface {
	Create(ctx context.Context, run *models.AllotmentRun) error
	GetByID(ctx context.Context, id string) (*models.AllotmentRun, error)
	ActiveForProgram(ctx context.Context, program string) (*models.AllotmentRun, error)
	Update(ctx context.Context, id string, params repository.UpdateRunParams) error
	List(ctx context.Context, filter models.RunFilter) ([]models.AllotmentRun, int, error)
	Delete(ctx context.Context, id string) error
}

type recordStore interface {
	InsertBatch(ctx context.Context, tx *sqlx.Tx, records []models.AllotmentRecord) error
	List(ctx context.Context, filter models.RecordFilter) ([]models.AllotmentRecord, int, error)
	ListAll(ctx context.Context, runID string) ([]models.AllotmentRecord, error)
	DeleteByRun(ctx context.Context, tx *sqlx.Tx, runID string) error
}

type datasetStore interface {
	Candidates(ctx context.Context, program string) ([]models.CandidateRow, error)
	Options(ctx context.Context, program string) ([]models.OptionRow, error)
	Seats(ctx context.Context, program string) ([]models.SeatCapacityRow, error)
	Previous(ctx context.Context, program string) ([]models.PreviousAllotmentRow, error)
}

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type runDispatcher interface {
	Enqueue(job jobs.Job) error
}

// AllotmentService orchestrates allotment run lifecycle: creation,
// asynchronous execution, result access and deletion.
type AllotmentService struct {
	runs       runStore
	records    recordStore
	datasets   datasetStore
	db         txBeginner
	queue      runDispatcher
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewAllotmentService constructs the allotment service. A positive
// runTimeout bounds each run's execution; zero disables the bound.
func NewAllotmentService(runs runStore, records recordStore, datasets datasetStore, db txBeginner, queue runDispatcher, cache *CacheService, metrics *MetricsService, validate *validator.Validate, runTimeout time.Duration, logger *zap.Logger) *AllotmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AllotmentService{
		runs:       runs,
		records:    records,
		datasets:   datasets,
		db:         db,
		queue:      queue,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

func runCacheKey(id string) string { return "allot:run:" + id }

// StartRun persists a pending run and enqueues it for execution. Only
// one run per program may be in flight at a time.
func (s *AllotmentService) StartRun(ctx context.Context, req dto.StartRunRequest, actorID string) (*dto.RunResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run payload")
	}

	active, err := s.runs.ActiveForProgram(ctx, req.Program)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active runs")
	}
	if active != nil {
		return nil, appErrors.Clone(appErrors.ErrRunActive, fmt.Sprintf("run %s is already %s for program %s", active.ID, active.Status, req.Program))
	}

	run := &models.AllotmentRun{
		Program:   req.Program,
		Phase:     req.Phase,
		Status:    models.RunStatusPending,
		Params:    models.RunParams{Eviction: req.Eviction, Upgrade: req.Upgrade, Conversion: req.Conversion},
		CreatedBy: actorID,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create run")
	}

	if err := s.queue.Enqueue(jobs.Job{RunID: run.ID}); err != nil {
		status := models.RunStatusFailed
		msg := "failed to enqueue run"
		now := time.Now().UTC()
		_ = s.runs.Update(ctx, run.ID, repository.UpdateRunParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue run")
	}

	s.logger.Info("allotment run queued",
		zap.String("run_id", run.ID),
		zap.String("program", run.Program),
		zap.Int("phase", run.Phase))

	resp := dto.NewRunResponse(*run)
	return &resp, nil
}

// GetRun returns one run with its counters. Terminal runs are served
// from cache when available.
func (s *AllotmentService) GetRun(ctx context.Context, id string) (*dto.RunResponse, error) {
	var cached dto.RunResponse
	if hit, _ := s.cache.Get(ctx, runCacheKey(id), &cached); hit {
		return &cached, nil
	}

	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}

	resp := dto.NewRunResponse(*run)
	if run.Status.Terminal() {
		_ = s.cache.Set(ctx, runCacheKey(id), resp, 0)
	}
	return &resp, nil
}

// ListRuns returns runs matching the query, newest first.
func (s *AllotmentService) ListRuns(ctx context.Context, query dto.RunListQuery) ([]dto.RunResponse, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run query")
	}

	filter := models.RunFilter{
		Program:  query.Program,
		Phase:    query.Phase,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Status != "" {
		status := models.RunStatus(query.Status)
		filter.Status = &status
	}

	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list runs")
	}

	out := make([]dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, dto.NewRunResponse(run))
	}
	page, pageSize := normalizedPagination(query.Page, query.PageSize)
	return out, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListRecords returns a page of a run's records in merit order.
func (s *AllotmentService) ListRecords(ctx context.Context, runID string, query dto.RecordListQuery) ([]dto.RecordResponse, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record query")
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, nil, err
	}

	records, total, err := s.records.List(ctx, models.RecordFilter{
		RunID:    runID,
		Status:   query.Status,
		College:  strings.ToUpper(strings.TrimSpace(query.College)),
		Course:   strings.ToUpper(strings.TrimSpace(query.Course)),
		Category: strings.ToUpper(strings.TrimSpace(query.Category)),
		RollNo:   query.RollNo,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}

	out := make([]dto.RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, dto.NewRecordResponse(rec))
	}
	page, pageSize := normalizedPagination(query.Page, query.PageSize)
	return out, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// DeleteRun removes a terminal run and its records.
func (s *AllotmentService) DeleteRun(ctx context.Context, id string) error {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	if !run.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrRunNotFinished, "only finished runs can be deleted")
	}
	if err := s.runs.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete run")
	}
	_ = s.cache.Invalidate(ctx, runCacheKey(id))
	return nil
}

func normalizedPagination(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return page, pageSize
}

// buildInput loads and normalises the source tables for a program into
// an engine snapshot. Codes are upper-cased and trimmed, options must
// be validated online and not delete-flagged, and delete-flagged
// candidates run as withdrawn.
func (s *AllotmentService) buildInput(ctx context.Context, program string) (allot.Input, error) {
	var in allot.Input

	candidates, err := s.datasets.Candidates(ctx, program)
	if err != nil {
		return in, fmt.Errorf("build input: %w", err)
	}
	options, err := s.datasets.Options(ctx, program)
	if err != nil {
		return in, fmt.Errorf("build input: %w", err)
	}
	seats, err := s.datasets.Seats(ctx, program)
	if err != nil {
		return in, fmt.Errorf("build input: %w", err)
	}
	previous, err := s.datasets.Previous(ctx, program)
	if err != nil {
		return in, fmt.Errorf("build input: %w", err)
	}

	in.Candidates = make([]allot.Candidate, 0, len(candidates))
	for _, row := range candidates {
		in.Candidates = append(in.Candidates, allot.Candidate{
			RollNo:   row.RollNo,
			Rank:     row.Rank,
			Category: allot.Category(clean(row.Category)),
			NRI:      clean(row.NRIStatus),
			Minority: clean(row.Minority),
			Special3: clean(row.Special3),
			QuotaRanks: map[allot.Category]int{
				allot.CategoryHQ: row.HQRank,
				allot.CategoryMQ: row.MQRank,
				allot.CategoryIQ: row.IQRank,
			},
			EligibleOption: clean(row.EligibleOption),
			Withdrawn:      clean(row.DeleteFlag) == "Y",
			Confirmed:      clean(row.ConfirmFlag) == "Y",
		})
	}

	in.Options = make([]allot.Option, 0, len(options))
	for _, row := range options {
		valid := clean(row.ValidOption)
		if valid != "Y" && valid != "T" {
			continue
		}
		if clean(row.DeleteFlag) == "Y" {
			continue
		}
		in.Options = append(in.Options, allot.Option{
			RollNo: row.RollNo,
			OpNo:   row.OpNo,
			Code:   clean(row.OptionCode),
		})
	}

	in.Seats = make([]allot.SeatRow, 0, len(seats))
	for _, row := range seats {
		in.Seats = append(in.Seats, allot.SeatRow{
			Group:    clean(row.Group),
			Type:     clean(row.Type),
			College:  clean(row.College),
			Course:   clean(row.Course),
			Category: allot.Category(clean(row.Category)),
			Seats:    row.Seats,
		})
	}

	in.Previous = make([]allot.PreviousAllotment, 0, len(previous))
	for _, row := range previous {
		in.Previous = append(in.Previous, allot.PreviousAllotment{
			RollNo:           row.RollNo,
			CurrentAdmission: clean(row.CurrentAdmission),
			JoinStatus:       clean(row.JoinStatus),
			LastOpNo:         row.LastOpNo,
		})
	}

	return in, nil
}

func clean(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// engineConfig resolves the program preset with per-run overrides.
func engineConfig(run *models.AllotmentRun) allot.EngineConfig {
	cfg := allot.Preset(allot.Program(run.Program), run.Phase)
	if run.Params.Eviction != nil {
		cfg.Eviction = *run.Params.Eviction
	}
	if run.Params.Upgrade != nil {
		cfg.Upgrade = *run.Params.Upgrade
	}
	if run.Params.Conversion != nil {
		cfg.Conversion = *run.Params.Conversion
	}
	return cfg
}

// HandleRun executes one queued run: it loads the snapshot, runs the
// engine and commits the outcome atomically with the run row update.
func (s *AllotmentService) HandleRun(ctx context.Context, job jobs.Job) error {
	run, err := s.runs.GetByID(ctx, job.RunID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", job.RunID, err)
	}
	if run.Status.Terminal() {
		return nil
	}

	running := models.RunStatusRunning
	started := time.Now().UTC()
	if err := s.runs.Update(ctx, run.ID, repository.UpdateRunParams{Status: &running, StartedAt: &started}); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}

	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	out, err := s.executeRun(runCtx, run)
	if err != nil {
		s.failRun(ctx, run.ID, err)
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordRun(run.Program, time.Since(started), out.Stats)
	}
	s.logger.Info("allotment run completed",
		zap.String("run_id", run.ID),
		zap.String("program", run.Program),
		zap.Int("phase", run.Phase),
		zap.Int("candidates", out.Stats.Candidates),
		zap.Int("allotted", out.Stats.Allotted),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (s *AllotmentService) executeRun(ctx context.Context, run *models.AllotmentRun) (*allot.Output, error) {
	in, err := s.buildInput(ctx, run.Program)
	if err != nil {
		return nil, err
	}

	out, err := allot.Run(in, engineConfig(run))
	if err != nil {
		var inv *allot.InvariantError
		if errors.As(err, &inv) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, inv.Error())
		}
		return nil, err
	}

	records := make([]models.AllotmentRecord, 0, len(out.Records))
	for _, rec := range out.Records {
		records = append(records, models.AllotmentRecord{
			RunID:     run.ID,
			RollNo:    rec.RollNo,
			Rank:      rec.Rank,
			Status:    string(rec.Status),
			AllotCode: rec.AllotCode,
			College:   rec.Key.College,
			Course:    rec.Key.Course,
			Category:  string(rec.Key.Category),
			OpNo:      rec.OpNo,
			Reason:    rec.BlockedReason,
		})
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.records.DeleteByRun(ctx, tx, run.ID); err != nil {
		return nil, err
	}
	if err := s.records.InsertBatch(ctx, tx, records); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run transaction: %w", err)
	}

	completed := models.RunStatusCompleted
	finished := time.Now().UTC()
	clearMsg := ""
	stats := &models.AllotmentRun{
		Candidates:  out.Stats.Candidates,
		Allotted:    out.Stats.Allotted,
		Retained:    out.Stats.Retained,
		Blocked:     out.Stats.Blocked,
		Unallotted:  out.Stats.Unallotted,
		Withdrawn:   out.Stats.Withdrawn,
		Evictions:   out.Stats.Evictions,
		Upgrades:    out.Stats.Upgrades,
		Conversions: out.Stats.Conversions,
	}
	if err := s.runs.Update(ctx, run.ID, repository.UpdateRunParams{
		Status:       &completed,
		Stats:        stats,
		FinishedAt:   &finished,
		ErrorMessage: &clearMsg,
	}); err != nil {
		return nil, fmt.Errorf("mark run completed: %w", err)
	}
	_ = s.cache.Invalidate(ctx, runCacheKey(run.ID))
	return out, nil
}

func (s *AllotmentService) failRun(ctx context.Context, id string, cause error) {
	failed := models.RunStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.runs.Update(ctx, id, repository.UpdateRunParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark run failed", zap.String("run_id", id), zap.Error(err))
	}
	_ = s.cache.Invalidate(ctx, runCacheKey(id))
	s.logger.Error("allotment run failed", zap.String("run_id", id), zap.Error(cause))
}

// RecoverPendingRuns re-enqueues pending runs after a process restart.
func (s *AllotmentService) RecoverPendingRuns(ctx context.Context) {
	status := models.RunStatusPending
	runs, _, err := s.runs.List(ctx, models.RunFilter{Status: &status, PageSize: 50})
	if err != nil {
		s.logger.Warn("failed to recover pending runs", zap.Error(err))
		return
	}
	for _, run := range runs {
		if err := s.queue.Enqueue(jobs.Job{RunID: run.ID}); err != nil {
			s.logger.Warn("failed to requeue pending run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}
