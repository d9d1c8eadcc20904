package service

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/cee-allot-api/internal/dto"
	"github.com/noah-isme/cee-allot-api/internal/models"
	"github.com/noah-isme/cee-allot-api/internal/repository"
	appErrors "github.com/noah-isme/cee-allot-api/pkg/errors"
	"github.com/noah-isme/cee-allot-api/pkg/jobs"
)

type stubRunStore struct {
	runs      map[string]*models.AllotmentRun
	active    *models.AllotmentRun
	created   []*models.AllotmentRun
	updates   map[string][]repository.UpdateRunParams
	createErr error
}

func newStubRunStore() *stubRunStore {
	return &stubRunStore{runs: map[string]*models.AllotmentRun{}, updates: map[string][]repository.UpdateRunParams{}}
}

func (s *stubRunStore) Create(ctx context.Context, run *models.AllotmentRun) error {
	if s.createErr != nil {
		return s.createErr
	}
	if run.ID == "" {
		run.ID = "run-1"
	}
	s.runs[run.ID] = run
	s.created = append(s.created, run)
	return nil
}

func (s *stubRunStore) GetByID(ctx context.Context, id string) (*models.AllotmentRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	clone := *run
	return &clone, nil
}

func (s *stubRunStore) ActiveForProgram(ctx context.Context, program string) (*models.AllotmentRun, error) {
	return s.active, nil
}

func (s *stubRunStore) Update(ctx context.Context, id string, params repository.UpdateRunParams) error {
	s.updates[id] = append(s.updates[id], params)
	if run, ok := s.runs[id]; ok && params.Status != nil {
		run.Status = *params.Status
	}
	return nil
}

func (s *stubRunStore) List(ctx context.Context, filter models.RunFilter) ([]models.AllotmentRun, int, error) {
	out := make([]models.AllotmentRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	return out, len(out), nil
}

func (s *stubRunStore) Delete(ctx context.Context, id string) error {
	delete(s.runs, id)
	return nil
}

type stubRecordStore struct {
	inserted []models.AllotmentRecord
	deleted  []string
}

func (s *stubRecordStore) InsertBatch(ctx context.Context, tx *sqlx.Tx, records []models.AllotmentRecord) error {
	s.inserted = append(s.inserted, records...)
	return nil
}

func (s *stubRecordStore) List(ctx context.Context, filter models.RecordFilter) ([]models.AllotmentRecord, int, error) {
	return nil, 0, nil
}

func (s *stubRecordStore) ListAll(ctx context.Context, runID string) ([]models.AllotmentRecord, error) {
	return s.inserted, nil
}

func (s *stubRecordStore) DeleteByRun(ctx context.Context, tx *sqlx.Tx, runID string) error {
	s.deleted = append(s.deleted, runID)
	return nil
}

type stubDatasetStore struct {
	candidates []models.CandidateRow
	options    []models.OptionRow
	seats      []models.SeatCapacityRow
	previous   []models.PreviousAllotmentRow
	err        error
}

func (s *stubDatasetStore) Candidates(ctx context.Context, program string) ([]models.CandidateRow, error) {
	return s.candidates, s.err
}

func (s *stubDatasetStore) Options(ctx context.Context, program string) ([]models.OptionRow, error) {
	return s.options, s.err
}

func (s *stubDatasetStore) Seats(ctx context.Context, program string) ([]models.SeatCapacityRow, error) {
	return s.seats, s.err
}

func (s *stubDatasetStore) Previous(ctx context.Context, program string) ([]models.PreviousAllotmentRow, error) {
	return s.previous, s.err
}

type stubQueue struct {
	jobs       []jobs.Job
	enqueueErr error
}

func (s *stubQueue) Enqueue(job jobs.Job) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func newMockTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func newAllotmentService(runs *stubRunStore, records *stubRecordStore, datasets *stubDatasetStore, db *sqlx.DB, queue *stubQueue) *AllotmentService {
	return NewAllotmentService(runs, records, datasets, db, queue, nil, nil, nil, 0, zap.NewNop())
}

func TestAllotmentServiceStartRun(t *testing.T) {
	runs := newStubRunStore()
	queue := &stubQueue{}
	svc := newAllotmentService(runs, &stubRecordStore{}, &stubDatasetStore{}, nil, queue)

	resp, err := svc.StartRun(context.Background(), dto.StartRunRequest{Program: "PGM", Phase: 2}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, resp.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.ID, queue.jobs[0].RunID)
}

func TestAllotmentServiceStartRunRejectsInvalidProgram(t *testing.T) {
	svc := newAllotmentService(newStubRunStore(), &stubRecordStore{}, &stubDatasetStore{}, nil, &stubQueue{})

	_, err := svc.StartRun(context.Background(), dto.StartRunRequest{Program: "XYZ", Phase: 1}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAllotmentServiceStartRunConflictsWithActiveRun(t *testing.T) {
	runs := newStubRunStore()
	runs.active = &models.AllotmentRun{ID: "busy", Program: "PGM", Status: models.RunStatusRunning}
	svc := newAllotmentService(runs, &stubRecordStore{}, &stubDatasetStore{}, nil, &stubQueue{})

	_, err := svc.StartRun(context.Background(), dto.StartRunRequest{Program: "PGM", Phase: 2}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRunActive.Code, appErrors.FromError(err).Code)
}

func TestAllotmentServiceStartRunEnqueueFailureMarksFailed(t *testing.T) {
	runs := newStubRunStore()
	queue := &stubQueue{enqueueErr: errors.New("queue closed")}
	svc := newAllotmentService(runs, &stubRecordStore{}, &stubDatasetStore{}, nil, queue)

	_, err := svc.StartRun(context.Background(), dto.StartRunRequest{Program: "DNM", Phase: 1}, "user-1")
	require.Error(t, err)
	require.Len(t, runs.created, 1)
	assert.Equal(t, models.RunStatusFailed, runs.created[0].Status)
}

func TestAllotmentServiceHandleRunCompletes(t *testing.T) {
	db, mock := newMockTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	runs := newStubRunStore()
	runs.runs["run-1"] = &models.AllotmentRun{ID: "run-1", Program: "PGM", Phase: 1, Status: models.RunStatusPending}

	records := &stubRecordStore{}
	datasets := &stubDatasetStore{
		candidates: []models.CandidateRow{
			{RollNo: 101, Rank: 1, Category: "sm "},
			{RollNo: 102, Rank: 2, Category: "SC"},
		},
		options: []models.OptionRow{
			{RollNo: 101, OpNo: 1, OptionCode: " dgvlkkm", ValidOption: "Y"},
			{RollNo: 102, OpNo: 1, OptionCode: "DGVLKKM", ValidOption: "Y"},
			{RollNo: 102, OpNo: 2, OptionCode: "DGVLTVM", ValidOption: "N"},
		},
		seats: []models.SeatCapacityRow{
			{Group: "D", Type: "G", College: "KKM", Course: "VL", Category: "SM", Seats: 1},
			{Group: "D", Type: "G", College: "KKM", Course: "VL", Category: "SC", Seats: 1},
		},
	}

	svc := newAllotmentService(runs, records, datasets, db, &stubQueue{})
	require.NoError(t, svc.HandleRun(context.Background(), jobs.Job{RunID: "run-1"}))

	require.Len(t, records.inserted, 2)
	assert.Equal(t, "ALLOTTED", records.inserted[0].Status)
	assert.Equal(t, "run-1", records.inserted[0].RunID)

	assert.Equal(t, models.RunStatusCompleted, runs.runs["run-1"].Status)
	final := runs.updates["run-1"][len(runs.updates["run-1"])-1]
	require.NotNil(t, final.Stats)
	assert.Equal(t, 2, final.Stats.Candidates)
	assert.Equal(t, 2, final.Stats.Allotted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllotmentServiceHandleRunNormalisesInput(t *testing.T) {
	db, mock := newMockTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	runs := newStubRunStore()
	runs.runs["run-1"] = &models.AllotmentRun{ID: "run-1", Program: "DNM", Phase: 1, Status: models.RunStatusPending}

	records := &stubRecordStore{}
	datasets := &stubDatasetStore{
		candidates: []models.CandidateRow{
			{RollNo: 101, Rank: 1, Category: "SM", DeleteFlag: "y "},
		},
		options: []models.OptionRow{
			{RollNo: 101, OpNo: 1, OptionCode: "DGVLKKM", ValidOption: "Y"},
		},
		seats: []models.SeatCapacityRow{
			{Group: "D", Type: "G", College: "KKM", Course: "VL", Category: "SM", Seats: 1},
		},
	}

	svc := newAllotmentService(runs, records, datasets, db, &stubQueue{})
	require.NoError(t, svc.HandleRun(context.Background(), jobs.Job{RunID: "run-1"}))

	// A delete-flagged candidate runs as withdrawn regardless of flag
	// casing or padding.
	require.Len(t, records.inserted, 1)
	assert.Equal(t, "WITHDRAWN", records.inserted[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllotmentServiceHandleRunFiltersSourceRows(t *testing.T) {
	db, mock := newMockTxDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	runs := newStubRunStore()
	runs.runs["run-1"] = &models.AllotmentRun{ID: "run-1", Program: "BLE", Phase: 1, Status: models.RunStatusPending}

	records := &stubRecordStore{}
	datasets := &stubDatasetStore{
		candidates: []models.CandidateRow{
			{RollNo: 101, Rank: 1, Category: "SM", EligibleOption: "n "},
			{RollNo: 102, Rank: 2, Category: "SM"},
		},
		options: []models.OptionRow{
			{RollNo: 101, OpNo: 1, OptionCode: "DGVLKKM", ValidOption: "Y"},
			{RollNo: 102, OpNo: 1, OptionCode: "DGVLKKM", ValidOption: "Y", DeleteFlag: "Y"},
			{RollNo: 102, OpNo: 2, OptionCode: "DGVLTVM", ValidOption: "Y"},
		},
		seats: []models.SeatCapacityRow{
			{Group: "D", Type: "G", College: "KKM", Course: "VL", Category: "SM", Seats: 1},
			{Group: "D", Type: "G", College: "TVM", Course: "VL", Category: "SM", Seats: 1},
		},
	}

	svc := newAllotmentService(runs, records, datasets, db, &stubQueue{})
	require.NoError(t, svc.HandleRun(context.Background(), jobs.Job{RunID: "run-1"}))

	require.Len(t, records.inserted, 2)

	// Roll 101 may not exercise options at all, so its KKM preference
	// never reaches the engine.
	assert.Equal(t, "UNALLOTTED", records.inserted[0].Status)
	assert.Equal(t, "not eligible for options", records.inserted[0].Reason)

	// Roll 102's first option is delete-flagged; the second one wins.
	assert.Equal(t, "ALLOTTED", records.inserted[1].Status)
	assert.Equal(t, "TVM", records.inserted[1].College)
	assert.Equal(t, 2, records.inserted[1].OpNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

type slowDatasetStore struct {
	stubDatasetStore
}

func (s *slowDatasetStore) Candidates(ctx context.Context, program string) ([]models.CandidateRow, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAllotmentServiceHandleRunTimesOut(t *testing.T) {
	runs := newStubRunStore()
	runs.runs["run-1"] = &models.AllotmentRun{ID: "run-1", Program: "PGM", Phase: 1, Status: models.RunStatusPending}

	svc := NewAllotmentService(runs, &stubRecordStore{}, &slowDatasetStore{}, nil, &stubQueue{}, nil, nil, nil, 10*time.Millisecond, zap.NewNop())

	err := svc.HandleRun(context.Background(), jobs.Job{RunID: "run-1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.RunStatusFailed, runs.runs["run-1"].Status)
}

func TestAllotmentServiceHandleRunDatasetFailure(t *testing.T) {
	runs := newStubRunStore()
	runs.runs["run-1"] = &models.AllotmentRun{ID: "run-1", Program: "PGM", Phase: 1, Status: models.RunStatusPending}

	datasets := &stubDatasetStore{err: errors.New("table missing")}
	svc := newAllotmentService(runs, &stubRecordStore{}, datasets, nil, &stubQueue{})

	err := svc.HandleRun(context.Background(), jobs.Job{RunID: "run-1"})
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, runs.runs["run-1"].Status)
}

func TestAllotmentServiceHandleRunSkipsTerminalRun(t *testing.T) {
	runs := newStubRunStore()
	runs.runs["run-1"] = &models.AllotmentRun{ID: "run-1", Program: "PGM", Status: models.RunStatusCompleted}

	records := &stubRecordStore{}
	svc := newAllotmentService(runs, records, &stubDatasetStore{}, nil, &stubQueue{})

	require.NoError(t, svc.HandleRun(context.Background(), jobs.Job{RunID: "run-1"}))
	assert.Empty(t, records.inserted)
}

func TestAllotmentServiceDeleteRun(t *testing.T) {
	runs := newStubRunStore()
	runs.runs["done"] = &models.AllotmentRun{ID: "done", Status: models.RunStatusCompleted}
	runs.runs["busy"] = &models.AllotmentRun{ID: "busy", Status: models.RunStatusRunning}
	svc := newAllotmentService(runs, &stubRecordStore{}, &stubDatasetStore{}, nil, &stubQueue{})

	require.NoError(t, svc.DeleteRun(context.Background(), "done"))

	err := svc.DeleteRun(context.Background(), "busy")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRunNotFinished.Code, appErrors.FromError(err).Code)
}

func TestEngineConfigOverrides(t *testing.T) {
	evict := true
	noUpgrade := false
	run := &models.AllotmentRun{
		Program: "PGM",
		Phase:   3,
		Params:  models.RunParams{Eviction: &evict, Upgrade: &noUpgrade},
	}
	cfg := engineConfig(run)
	assert.True(t, cfg.Eviction)
	assert.False(t, cfg.Upgrade)
	assert.True(t, cfg.Conversion, "preset value survives when no override is set")
}
