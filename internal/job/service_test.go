package job

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/motiontransfer/internal/motion"
	"github.com/maauso/motiontransfer/internal/pipeline"
	"github.com/maauso/motiontransfer/internal/storage"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, req pipeline.Request, obs pipeline.Observer) pipeline.Outcome {
	args := m.Called(ctx, req, obs)
	return args.Get(0).(pipeline.Outcome)
}

// publishingStorage records published objects instead of uploading them.
type publishingStorage struct {
	*storage.LocalStorage
	keys   []string
	bodies []string
	err    error
}

func (p *publishingStorage) Publish(_ context.Context, key string, data io.Reader) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	body, _ := io.ReadAll(data)
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, string(body))
	return "https://bucket.example.com/" + key, nil
}

func newTestStore(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func testInput() CreateJobInput {
	return CreateJobInput{
		SourceImage:  Upload{Name: "face.png", Data: strings.NewReader("png")},
		DrivingVideo: Upload{Name: "clip.mp4", Data: strings.NewReader("mp4")},
		Quality:      18,
		Model:        "vox-256",
	}
}

// runStages replays a successful run on obs and writes the files the tools would.
func runStages(args mock.Arguments) {
	req := args.Get(1).(pipeline.Request)
	obs := args.Get(2).(pipeline.Observer)
	obs.OnStage(pipeline.StageSuggest)
	obs.OnProgress(pipeline.ProgressSuggested)
	obs.OnStage(pipeline.StageCrop)
	obs.OnStage(pipeline.StageInfer)
	obs.OnProgress(pipeline.ProgressCropped)
	obs.OnStage(pipeline.StageDone)
	obs.OnProgress(pipeline.ProgressDone)

	_ = os.WriteFile(croppedPath(req.DrivingVideoPath), []byte("cropped"), 0o600)
	_ = os.WriteFile(req.OutputName, []byte("result"), 0o600)
}

func croppedPath(driving string) string {
	return strings.TrimSuffix(driving, filepath.Ext(driving)) + "_cropped.mp4"
}

func successOutcome(store storage.Storage, job *Job) pipeline.Outcome {
	return pipeline.Outcome{
		Stage:       pipeline.StageDone,
		OutputPath:  filepath.Join(store.Dir(), job.ID+"_"+job.OutputName),
		CroppedPath: croppedPath(job.DrivingVideoPath),
	}
}

func TestNewRunService(t *testing.T) {
	svc := NewRunService(NewMemoryRepository(), &mockExecutor{}, newTestStore(t), nil)

	assert.NotNil(t, svc.logger)
	assert.Equal(t, "results", svc.resultPrefix)
	assert.False(t, svc.publishing)

	svc = NewRunService(NewMemoryRepository(), &mockExecutor{}, newTestStore(t), nil,
		WithPublishing(true), WithResultPrefix("videos"))
	assert.True(t, svc.publishing)
	assert.Equal(t, "videos", svc.resultPrefix)
}

func TestRunService_CreateJob(t *testing.T) {
	store := newTestStore(t)
	repo := NewMemoryRepository()
	svc := NewRunService(repo, &mockExecutor{}, store, nil)
	ctx := context.Background()

	input := testInput()
	input.Relative = true
	input.OutputName = "../../escape/result.mp4"

	job, err := svc.CreateJob(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, StatusInQueue, job.Status)
	assert.Equal(t, 18, job.Quality)
	assert.Equal(t, "vox-256", job.Model)
	assert.True(t, job.Relative)
	assert.Equal(t, "result.mp4", job.OutputName)

	assert.Equal(t, ".png", filepath.Ext(job.SourceImagePath))
	assert.Equal(t, ".mp4", filepath.Ext(job.DrivingVideoPath))
	assert.Equal(t, store.Dir(), filepath.Dir(job.SourceImagePath))

	data, err := os.ReadFile(job.DrivingVideoPath)
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(data))

	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.SourceImagePath, saved.SourceImagePath)
}

func TestRunService_CreateJob_DefaultOutputName(t *testing.T) {
	svc := NewRunService(NewMemoryRepository(), &mockExecutor{}, newTestStore(t), nil)

	job, err := svc.CreateJob(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, motion.DefaultOutputName, job.OutputName)
}

func TestRunService_CreateJob_PublishUnavailable(t *testing.T) {
	store := newTestStore(t)
	svc := NewRunService(NewMemoryRepository(), &mockExecutor{}, store, nil)

	input := testInput()
	input.PushToS3 = true
	_, err := svc.CreateJob(context.Background(), input)
	assert.ErrorIs(t, err, ErrPublishUnavailable)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "no inputs should be stored")
}

func TestRunService_ProcessExistingJob_Success(t *testing.T) {
	store := newTestStore(t)
	repo := NewMemoryRepository()
	exec := &mockExecutor{}
	svc := NewRunService(repo, exec, store, nil)
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, testInput())
	require.NoError(t, err)
	want := successOutcome(store, created)

	var observed []string
	exec.On("Execute", mock.Anything, pipeline.Request{
		SourceImagePath:  created.SourceImagePath,
		DrivingVideoPath: created.DrivingVideoPath,
		Quality:          18,
		Model:            motion.VariantVox256,
		OutputName:       want.OutputPath,
	}, mock.Anything).Run(func(args mock.Arguments) {
		obs := args.Get(2).(pipeline.Observer)
		obs.OnStage(pipeline.StageSuggest)
		current, _ := repo.FindByID(ctx, created.ID)
		observed = append(observed, string(current.Status), current.Stage)
		runStages(args)
	}).Return(want).Once()

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	require.NoError(t, err)
	exec.AssertExpectations(t)

	assert.Equal(t, []string{"RUNNING", "suggest"}, observed)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, "done", job.Stage)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, want.OutputPath, job.OutputVideoPath)
	assert.Equal(t, want.CroppedPath, job.CroppedVideoPath)
	assert.Empty(t, job.VideoURL)
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.CompletedAt.IsZero())

	saved, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, saved.Status)
	assert.Equal(t, want.OutputPath, saved.OutputVideoPath)
}

func TestRunService_ProcessExistingJob_StageFailure(t *testing.T) {
	store := newTestStore(t)
	repo := NewMemoryRepository()
	exec := &mockExecutor{}
	svc := NewRunService(repo, exec, store, nil)
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, testInput())
	require.NoError(t, err)

	exec.On("Execute", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		obs := args.Get(2).(pipeline.Observer)
		obs.OnStage(pipeline.StageSuggest)
		obs.OnProgress(pipeline.ProgressSuggested)
		obs.OnStage(pipeline.StageCrop)
		obs.OnStage(pipeline.StageFailed)
	}).Return(pipeline.Outcome{
		Stage:       pipeline.StageCrop,
		CroppedPath: croppedPath(created.DrivingVideoPath),
		Message:     "failed to crop driving video (exit status 1)",
		Err:         errors.New("crop"),
	}).Once()

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "crop", job.Stage)
	assert.Equal(t, 30, job.Progress)
	assert.Equal(t, "failed to crop driving video (exit status 1)", job.Error)
	assert.Empty(t, job.OutputVideoPath)
	assert.Equal(t, croppedPath(created.DrivingVideoPath), job.CroppedVideoPath)
}

func TestRunService_ProcessExistingJob_Publish(t *testing.T) {
	store := &publishingStorage{LocalStorage: newTestStore(t)}
	repo := NewMemoryRepository()
	exec := &mockExecutor{}
	svc := NewRunService(repo, exec, store, nil, WithPublishing(true))
	ctx := context.Background()

	input := testInput()
	input.PushToS3 = true
	created, err := svc.CreateJob(ctx, input)
	require.NoError(t, err)
	want := successOutcome(store, created)

	exec.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Run(runStages).Return(want).Once()

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, []string{"results/" + created.ID + ".mp4"}, store.keys)
	assert.Equal(t, []string{"result"}, store.bodies)
	assert.Equal(t, "https://bucket.example.com/results/"+created.ID+".mp4", job.VideoURL)
	assert.Empty(t, job.OutputVideoPath)
	assert.Empty(t, job.CroppedVideoPath)

	assert.NoFileExists(t, want.OutputPath)
	assert.NoFileExists(t, want.CroppedPath)
	assert.FileExists(t, created.SourceImagePath)
}

func TestRunService_ProcessExistingJob_PublishFailure(t *testing.T) {
	store := &publishingStorage{LocalStorage: newTestStore(t), err: errors.New("access denied")}
	exec := &mockExecutor{}
	svc := NewRunService(NewMemoryRepository(), exec, store, nil, WithPublishing(true))
	ctx := context.Background()

	input := testInput()
	input.PushToS3 = true
	created, err := svc.CreateJob(ctx, input)
	require.NoError(t, err)
	want := successOutcome(store, created)

	exec.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Run(runStages).Return(want).Once()

	job, err := svc.ProcessExistingJob(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, StagePublish, job.Stage)
	assert.Contains(t, job.Error, ErrPublishFailed.Error())
	assert.Contains(t, job.Error, "access denied")
	assert.Equal(t, want.OutputPath, job.OutputVideoPath)
	assert.FileExists(t, want.OutputPath)
}

func TestRunService_ProcessExistingJob_NotFound(t *testing.T) {
	exec := &mockExecutor{}
	svc := NewRunService(NewMemoryRepository(), exec, newTestStore(t), nil)

	_, err := svc.ProcessExistingJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunService_ProcessExistingJob_AlreadyProcessed(t *testing.T) {
	store := newTestStore(t)
	exec := &mockExecutor{}
	svc := NewRunService(NewMemoryRepository(), exec, store, nil)
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, testInput())
	require.NoError(t, err)
	exec.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Run(runStages).Return(successOutcome(store, created)).Once()

	_, err = svc.ProcessExistingJob(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.ProcessExistingJob(ctx, created.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	exec.AssertNumberOfCalls(t, "Execute", 1)
}

func TestRunService_GetAndListJobs(t *testing.T) {
	svc := NewRunService(NewMemoryRepository(), &mockExecutor{}, newTestStore(t), nil)
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, testInput())
	require.NoError(t, err)

	found, err := svc.GetJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.GetJob(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs, err := svc.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, created.ID, jobs[0].ID)
}

func TestRunService_DeleteJob(t *testing.T) {
	store := newTestStore(t)
	repo := NewMemoryRepository()
	exec := &mockExecutor{}
	svc := NewRunService(repo, exec, store, nil)
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, testInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteJob(ctx, created.ID), ErrJobActive)

	want := successOutcome(store, created)
	exec.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Run(runStages).Return(want).Once()
	_, err = svc.ProcessExistingJob(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteJob(ctx, created.ID))

	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	for _, p := range []string{created.SourceImagePath, created.DrivingVideoPath, want.CroppedPath, want.OutputPath} {
		assert.NoFileExists(t, p)
	}

	assert.ErrorIs(t, svc.DeleteJob(ctx, created.ID), ErrJobNotFound)
}

func TestRunService_CreateJob_ReadError(t *testing.T) {
	store := newTestStore(t)
	svc := NewRunService(NewMemoryRepository(), &mockExecutor{}, store, nil)

	input := testInput()
	input.DrivingVideo.Data = io.MultiReader(bytes.NewReader([]byte("x")), errReader{})
	_, err := svc.CreateJob(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save driving video")

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "source image should be removed")
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
