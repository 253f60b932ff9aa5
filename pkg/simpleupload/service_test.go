package simpleupload_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
	"github.com/clipstream/simple-upload/pkg/simpleupload/objectkey"
	repomemory "github.com/clipstream/simple-upload/pkg/simpleupload/repo/memory"
	memorystorage "github.com/clipstream/simple-upload/pkg/simpleupload/storage/memory"
	cachememory "github.com/clipstream/simple-upload/pkg/simpleupload/urlcache/memory"
	"github.com/clipstream/simple-upload/pkg/simpleupload/validate"
)

// recordingQueue captures enqueued cleanup tasks for assertions.
type recordingQueue struct {
	tasks []simpleupload.CleanupTask
}

func (q *recordingQueue) Enqueue(task simpleupload.CleanupTask) {
	q.tasks = append(q.tasks, task)
}

// failingRepo wraps a repository and fails CreateUploadRecord, for testing
// the compensation paths.
type failingRepo struct {
	simpleupload.Repository
}

func (r *failingRepo) CreateUploadRecord(ctx context.Context, record *simpleupload.UploadRecord) error {
	return errors.New("insert failed")
}

// raceLosingRepo wraps a repository and reports every finalize as already
// gone, as when a concurrent abort deleted the row between the store call
// and the conditional update.
type raceLosingRepo struct {
	simpleupload.Repository
}

func (r *raceLosingRepo) FinalizeUpload(ctx context.Context, id uuid.UUID, uploadID string) error {
	return simpleupload.ErrUploadNotFound
}

// raceCompletingRepo simulates a complete winning between abort's read and
// its conditional delete: the delete finds nothing, and the record is
// finished by then.
type raceCompletingRepo struct {
	simpleupload.Repository
	finalize bool
}

func (r *raceCompletingRepo) DeletePending(ctx context.Context, id uuid.UUID, uploadID string) error {
	if r.finalize {
		if err := r.Repository.FinalizeUpload(ctx, id, uploadID); err != nil {
			return err
		}
	}
	return simpleupload.ErrUploadNotFound
}

// failingStore wraps a store and fails CreateMultipartUpload.
type failingStore struct {
	simpleupload.ObjectStore
}

func (s *failingStore) CreateMultipartUpload(ctx context.Context, objectKey, contentType string) (string, error) {
	return "", errors.New("store unavailable")
}

type testEnv struct {
	svc   simpleupload.Service
	repo  *repomemory.Repository
	store *memorystorage.Store
	cache *cachememory.Cache
	queue *recordingQueue
}

func setupTestService(t *testing.T, extra ...simpleupload.Option) *testEnv {
	env := &testEnv{
		repo:  repomemory.New(),
		store: memorystorage.New(),
		cache: cachememory.New(),
		queue: &recordingQueue{},
	}

	options := []simpleupload.Option{
		simpleupload.WithRepository(env.repo),
		simpleupload.WithObjectStore(env.store),
		simpleupload.WithURLCache(env.cache),
		simpleupload.WithCleanupQueue(env.queue),
		simpleupload.WithValidator(simpleupload.MediaTypeVideo, validate.ForMediaType(simpleupload.MediaTypeVideo)),
		simpleupload.WithValidator(simpleupload.MediaTypeAvatar, validate.ForMediaType(simpleupload.MediaTypeAvatar)),
	}
	options = append(options, extra...)

	svc, err := simpleupload.New(options...)
	require.NoError(t, err)
	require.NotNil(t, svc)

	env.svc = svc
	return env
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simpleupload.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simpleupload.Option{},
			expectError: true,
		},
		{
			name: "repository only should fail",
			options: []simpleupload.Option{
				simpleupload.WithRepository(repomemory.New()),
			},
			expectError: true,
		},
		{
			name: "repository and object store should succeed",
			options: []simpleupload.Option{
				simpleupload.WithRepository(repomemory.New()),
				simpleupload.WithObjectStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simpleupload.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestMultipartUploadLifecycle(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	result, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
		Title:     "My Clip",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.UploadID)
	require.True(t, strings.HasPrefix(result.ObjectKey, "video/"))
	assert.True(t, strings.HasSuffix(result.ObjectKey, "_clip.mp4"))
	assert.Equal(t, simpleupload.UploadStatusPending, result.Record.UploadStatus)
	require.NotNil(t, result.Record.UploadID)
	assert.Equal(t, result.UploadID, *result.Record.UploadID)

	// Presign a couple of part URLs. Each call yields a fresh signature.
	url1, err := env.svc.GeneratePartURL(ctx, simpleupload.PartURLRequest{
		OwnerID:    owner,
		ObjectKey:  result.ObjectKey,
		UploadID:   result.UploadID,
		PartNumber: 1,
	})
	require.NoError(t, err)
	url2, err := env.svc.GeneratePartURL(ctx, simpleupload.PartURLRequest{
		OwnerID:    owner,
		ObjectKey:  result.ObjectKey,
		UploadID:   result.UploadID,
		PartNumber: 2,
	})
	require.NoError(t, err)
	assert.NotEqual(t, url1, url2)

	// Simulate the client PUTs against the presigned URLs.
	etag1, err := env.store.PutPart(result.ObjectKey, result.UploadID, 1, []byte("hello "))
	require.NoError(t, err)
	etag2, err := env.store.PutPart(result.ObjectKey, result.UploadID, 2, []byte("world"))
	require.NoError(t, err)

	record, err := env.svc.CompleteUpload(ctx, simpleupload.CompleteUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
		Parts: []simpleupload.CompletedPart{
			{PartNumber: 1, ETag: etag1},
			{PartNumber: 2, ETag: etag2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, simpleupload.UploadStatusFinished, record.UploadStatus)
	assert.Nil(t, record.UploadID)

	data, ok := env.store.GetObject(result.ObjectKey)
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), data)
	assert.Zero(t, env.store.OpenSessions())

	// The persisted row finished too.
	stored, err := env.repo.GetByObjectKey(ctx, result.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, simpleupload.UploadStatusFinished, stored.UploadStatus)
	assert.Nil(t, stored.UploadID)
}

func TestInitiateUploadRejectsBadFilenames(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		mediaType simpleupload.MediaType
		fileName  string
		wantErr   error
	}{
		{"empty filename", simpleupload.MediaTypeVideo, "", simpleupload.ErrInvalidFilename},
		{"executable", simpleupload.MediaTypeVideo, "setup.exe", simpleupload.ErrUnsupportedFormat},
		{"image as video", simpleupload.MediaTypeVideo, "photo.png", simpleupload.ErrUnsupportedFormat},
		{"video as avatar", simpleupload.MediaTypeAvatar, "clip.mp4", simpleupload.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
				OwnerID:   uuid.New(),
				MediaType: tt.mediaType,
				FileName:  tt.fileName,
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Validation failures must not touch the store or the database.
	assert.Zero(t, env.store.OpenSessions())
	assert.Empty(t, env.queue.tasks)
}

func TestInitiateUploadCaseInsensitiveExtension(t *testing.T) {
	env := setupTestService(t)

	result, err := env.svc.InitiateUpload(context.Background(), simpleupload.InitiateUploadRequest{
		OwnerID:   uuid.New(),
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "CLIP.MP4",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.UploadID)
}

func TestGeneratePartURLBounds(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	result, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	for _, partNumber := range []int32{0, -1, 10001} {
		_, err := env.svc.GeneratePartURL(ctx, simpleupload.PartURLRequest{
			OwnerID:    owner,
			ObjectKey:  result.ObjectKey,
			UploadID:   result.UploadID,
			PartNumber: partNumber,
		})
		assert.ErrorIs(t, err, simpleupload.ErrInvalidPartNumber, "part %d", partNumber)
	}

	// Boundary values are accepted.
	for _, partNumber := range []int32{1, 10000} {
		_, err := env.svc.GeneratePartURL(ctx, simpleupload.PartURLRequest{
			OwnerID:    owner,
			ObjectKey:  result.ObjectKey,
			UploadID:   result.UploadID,
			PartNumber: partNumber,
		})
		assert.NoError(t, err, "part %d", partNumber)
	}
}

func TestGeneratePartURLOwnershipIsolation(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	intruder := uuid.New()

	result, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	// Another owner probing a real session sees the same error as a probe
	// for a session that does not exist at all.
	_, err = env.svc.GeneratePartURL(ctx, simpleupload.PartURLRequest{
		OwnerID:    intruder,
		ObjectKey:  result.ObjectKey,
		UploadID:   result.UploadID,
		PartNumber: 1,
	})
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)

	_, err = env.svc.GeneratePartURL(ctx, simpleupload.PartURLRequest{
		OwnerID:    intruder,
		ObjectKey:  "video/nope_clip.mp4",
		UploadID:   "no-such-session",
		PartNumber: 1,
	})
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)
}

func TestCompleteUploadUnknownSession(t *testing.T) {
	env := setupTestService(t)

	_, err := env.svc.CompleteUpload(context.Background(), simpleupload.CompleteUploadRequest{
		OwnerID:   uuid.New(),
		ObjectKey: "video/ghost_clip.mp4",
		UploadID:  "no-such-session",
	})
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)
}

func TestCompleteUploadMissingParts(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	result, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	// No parts were ever uploaded; completion must fail and the record must
	// stay pending so the client can retry or abort.
	_, err = env.svc.CompleteUpload(ctx, simpleupload.CompleteUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
		Parts:     []simpleupload.CompletedPart{{PartNumber: 1, ETag: "bogus"}},
	})
	require.ErrorIs(t, err, simpleupload.ErrObjectMissing)

	record, err := env.repo.GetByUploadID(ctx, result.UploadID)
	require.NoError(t, err)
	assert.Equal(t, simpleupload.UploadStatusPending, record.UploadStatus)
}

func TestAbortUploadIsIdempotent(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	result, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	req := simpleupload.AbortUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
	}

	require.NoError(t, env.svc.AbortUpload(ctx, req))
	assert.Zero(t, env.store.OpenSessions())

	// Second abort of the same session succeeds without complaint.
	assert.NoError(t, env.svc.AbortUpload(ctx, req))

	// The record is gone.
	_, err = env.repo.GetByObjectKey(ctx, result.ObjectKey)
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)
}

func TestAbortAfterCompleteFails(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	result, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	etag, err := env.store.PutPart(result.ObjectKey, result.UploadID, 1, []byte("data"))
	require.NoError(t, err)

	_, err = env.svc.CompleteUpload(ctx, simpleupload.CompleteUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
		Parts:     []simpleupload.CompletedPart{{PartNumber: 1, ETag: etag}},
	})
	require.NoError(t, err)

	// The state machine only moves forward: a finalized upload cannot be
	// aborted, and the finished object must survive the attempt.
	err = env.svc.AbortUpload(ctx, simpleupload.AbortUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
	})
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)

	_, ok := env.store.GetObject(result.ObjectKey)
	assert.True(t, ok)

	// The invalidated session cannot mint more part URLs either.
	_, err = env.svc.GeneratePartURL(ctx, simpleupload.PartURLRequest{
		OwnerID:    owner,
		ObjectKey:  result.ObjectKey,
		UploadID:   result.UploadID,
		PartNumber: 1,
	})
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)
}

func TestCompleteAfterAbortFails(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	result, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.AbortUpload(ctx, simpleupload.AbortUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
	}))

	_, err = env.svc.CompleteUpload(ctx, simpleupload.CompleteUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
	})
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)
}

func TestCompleteUploadCompensatesLostFinalizeRace(t *testing.T) {
	store := memorystorage.New()
	queue := &recordingQueue{}

	svc, err := simpleupload.New(
		simpleupload.WithRepository(&raceLosingRepo{Repository: repomemory.New()}),
		simpleupload.WithObjectStore(store),
		simpleupload.WithCleanupQueue(queue),
		simpleupload.WithValidator(simpleupload.MediaTypeVideo, validate.ForMediaType(simpleupload.MediaTypeVideo)),
	)
	require.NoError(t, err)

	ctx := context.Background()
	owner := uuid.New()

	result, err := svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	etag, err := store.PutPart(result.ObjectKey, result.UploadID, 1, []byte("data"))
	require.NoError(t, err)

	_, err = svc.CompleteUpload(ctx, simpleupload.CompleteUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
		Parts:     []simpleupload.CompletedPart{{PartNumber: 1, ETag: etag}},
	})
	require.ErrorIs(t, err, simpleupload.ErrUploadNotFound)

	// The store assembled the object before the row vanished; a delete task
	// must be queued so it does not stay orphaned.
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, simpleupload.TaskDeleteObject, queue.tasks[0].Kind)
	assert.Equal(t, result.ObjectKey, queue.tasks[0].Key)
}

func TestAbortUploadLosingRaceToComplete(t *testing.T) {
	store := memorystorage.New()

	svc, err := simpleupload.New(
		simpleupload.WithRepository(&raceCompletingRepo{Repository: repomemory.New(), finalize: true}),
		simpleupload.WithObjectStore(store),
		simpleupload.WithValidator(simpleupload.MediaTypeVideo, validate.ForMediaType(simpleupload.MediaTypeVideo)),
	)
	require.NoError(t, err)

	ctx := context.Background()
	owner := uuid.New()

	result, err := svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	// The conditional delete misses because a concurrent complete finished
	// the record first; the abort must report the conflict, not success.
	err = svc.AbortUpload(ctx, simpleupload.AbortUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
	})
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)
}

func TestAbortUploadLosingRaceToAbort(t *testing.T) {
	repo := repomemory.New()
	store := memorystorage.New()

	svc, err := simpleupload.New(
		simpleupload.WithRepository(&raceCompletingRepo{Repository: repo}),
		simpleupload.WithObjectStore(store),
		simpleupload.WithValidator(simpleupload.MediaTypeVideo, validate.ForMediaType(simpleupload.MediaTypeVideo)),
	)
	require.NoError(t, err)

	ctx := context.Background()
	owner := uuid.New()

	result, err := svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	// A concurrent abort got to the row first. No finished record exists
	// under the key, so this abort is an idempotent success.
	err = svc.AbortUpload(ctx, simpleupload.AbortUploadRequest{
		OwnerID:   owner,
		ObjectKey: result.ObjectKey,
		UploadID:  result.UploadID,
	})
	assert.NoError(t, err)
}

func TestInitiateUploadStoreFailureLeavesNoRow(t *testing.T) {
	repo := repomemory.New()
	queue := &recordingQueue{}

	svc, err := simpleupload.New(
		simpleupload.WithRepository(repo),
		simpleupload.WithObjectStore(&failingStore{ObjectStore: memorystorage.New()}),
		simpleupload.WithCleanupQueue(queue),
		simpleupload.WithValidator(simpleupload.MediaTypeVideo, validate.ForMediaType(simpleupload.MediaTypeVideo)),
		simpleupload.WithKeyGenerator(&objectkey.CustomFuncGenerator{
			GenerateFunc: func(prefix, filename string) string { return prefix + "/fixed_" + filename },
		}),
	)
	require.NoError(t, err)

	_, err = svc.InitiateUpload(context.Background(), simpleupload.InitiateUploadRequest{
		OwnerID:   uuid.New(),
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.Error(t, err)

	// The store call failed before anything was persisted, so there is no
	// row to compensate for and no cleanup to schedule.
	_, err = repo.GetByObjectKey(context.Background(), "video/fixed_clip.mp4")
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)
	assert.Empty(t, queue.tasks)
}

func TestInitiateUploadCompensatesFailedInsert(t *testing.T) {
	env := &testEnv{
		store: memorystorage.New(),
		queue: &recordingQueue{},
	}

	svc, err := simpleupload.New(
		simpleupload.WithRepository(&failingRepo{Repository: repomemory.New()}),
		simpleupload.WithObjectStore(env.store),
		simpleupload.WithCleanupQueue(env.queue),
		simpleupload.WithValidator(simpleupload.MediaTypeVideo, validate.ForMediaType(simpleupload.MediaTypeVideo)),
	)
	require.NoError(t, err)

	_, err = svc.InitiateUpload(context.Background(), simpleupload.InitiateUploadRequest{
		OwnerID:   uuid.New(),
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.Error(t, err)

	// The session opened on the store before the insert failed; an abort
	// task must be queued so it does not leak.
	require.Len(t, env.queue.tasks, 1)
	task := env.queue.tasks[0]
	assert.Equal(t, simpleupload.TaskAbortMultipart, task.Kind)
	assert.NotEmpty(t, task.UploadID)
	assert.True(t, strings.HasPrefix(task.Key, "video/"))
}

func TestDirectUploadCompensatesFailedInsert(t *testing.T) {
	store := memorystorage.New()
	queue := &recordingQueue{}

	svc, err := simpleupload.New(
		simpleupload.WithRepository(&failingRepo{Repository: repomemory.New()}),
		simpleupload.WithObjectStore(store),
		simpleupload.WithCleanupQueue(queue),
		simpleupload.WithValidator(simpleupload.MediaTypeAvatar, validate.ForMediaType(simpleupload.MediaTypeAvatar)),
	)
	require.NoError(t, err)

	_, err = svc.UploadDirect(context.Background(), simpleupload.DirectUploadRequest{
		OwnerID:   uuid.New(),
		MediaType: simpleupload.MediaTypeAvatar,
		FileName:  "me.png",
		Body:      strings.NewReader("png bytes"),
	})
	require.Error(t, err)

	require.Len(t, queue.tasks, 1)
	assert.Equal(t, simpleupload.TaskDeleteObject, queue.tasks[0].Kind)
}

func TestUploadDirect(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	record, err := env.svc.UploadDirect(ctx, simpleupload.DirectUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeAvatar,
		FileName:  "me.png",
		Body:      strings.NewReader("png bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, simpleupload.UploadStatusFinished, record.UploadStatus)
	assert.Nil(t, record.UploadID)
	assert.True(t, strings.HasPrefix(record.ObjectKey, "avatar/"))

	data, ok := env.store.GetObject(record.ObjectKey)
	require.True(t, ok)
	assert.Equal(t, []byte("png bytes"), data)

	// Finished immediately, so the download path works right away.
	url, err := env.svc.GetDownloadURL(ctx, record.ObjectKey)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestGetDownloadURLCaching(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	record, err := env.svc.UploadDirect(ctx, simpleupload.DirectUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeAvatar,
		FileName:  "me.png",
		Body:      strings.NewReader("png bytes"),
	})
	require.NoError(t, err)

	// The memory store makes every presign call unique, so a repeated URL
	// proves the cache served the second request.
	url1, err := env.svc.GetDownloadURL(ctx, record.ObjectKey)
	require.NoError(t, err)
	url2, err := env.svc.GetDownloadURL(ctx, record.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, url1, url2)

	// After eviction a fresh URL is presigned.
	env.cache.Delete(ctx, simpleupload.DownloadURLCacheKey(record.ObjectKey))
	url3, err := env.svc.GetDownloadURL(ctx, record.ObjectKey)
	require.NoError(t, err)
	assert.NotEqual(t, url1, url3)
}

func TestGetDownloadURLPendingUpload(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	result, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   uuid.New(),
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
	})
	require.NoError(t, err)

	// Still pending, not downloadable.
	_, err = env.svc.GetDownloadURL(ctx, result.ObjectKey)
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)

	_, err = env.svc.GetDownloadURL(ctx, "video/nope_clip.mp4")
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)
}

func TestDeleteMedia(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	record, err := env.svc.UploadDirect(ctx, simpleupload.DirectUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeAvatar,
		FileName:  "me.png",
		Body:      strings.NewReader("png bytes"),
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteMedia(ctx, owner, record.ObjectKey))

	// Row gone immediately, object deletion deferred to the queue.
	_, err = env.repo.GetByObjectKey(ctx, record.ObjectKey)
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)

	require.Len(t, env.queue.tasks, 1)
	task := env.queue.tasks[0]
	assert.Equal(t, simpleupload.TaskDeleteObject, task.Kind)
	assert.Equal(t, record.ObjectKey, task.Key)
	assert.Equal(t, simpleupload.DownloadURLCacheKey(record.ObjectKey), task.CacheKey)
}

func TestDeleteMediaWrongOwner(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	record, err := env.svc.UploadDirect(ctx, simpleupload.DirectUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeAvatar,
		FileName:  "me.png",
		Body:      strings.NewReader("png bytes"),
	})
	require.NoError(t, err)

	err = env.svc.DeleteMedia(ctx, uuid.New(), record.ObjectKey)
	assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound)

	// Record untouched.
	_, err = env.repo.GetByObjectKey(ctx, record.ObjectKey)
	assert.NoError(t, err)
	assert.Empty(t, env.queue.tasks)
}

func TestDeleteOwnerMedia(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	// Two finished uploads and one in-flight session for the owner.
	first, err := env.svc.UploadDirect(ctx, simpleupload.DirectUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeAvatar,
		FileName:  "me.png",
		Body:      strings.NewReader("a"),
	})
	require.NoError(t, err)
	second, err := env.svc.UploadDirect(ctx, simpleupload.DirectUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "clip.mp4",
		Body:      strings.NewReader("b"),
	})
	require.NoError(t, err)
	pending, err := env.svc.InitiateUpload(ctx, simpleupload.InitiateUploadRequest{
		OwnerID:   owner,
		MediaType: simpleupload.MediaTypeVideo,
		FileName:  "wip.mp4",
	})
	require.NoError(t, err)

	// Another owner's upload must survive.
	bystander, err := env.svc.UploadDirect(ctx, simpleupload.DirectUploadRequest{
		OwnerID:   other,
		MediaType: simpleupload.MediaTypeAvatar,
		FileName:  "them.png",
		Body:      strings.NewReader("c"),
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteOwnerMedia(ctx, owner))

	for _, key := range []string{first.ObjectKey, second.ObjectKey, pending.ObjectKey} {
		_, err := env.repo.GetByObjectKey(ctx, key)
		assert.ErrorIs(t, err, simpleupload.ErrUploadNotFound, "key %s", key)
	}
	_, err = env.repo.GetByObjectKey(ctx, bystander.ObjectKey)
	assert.NoError(t, err)

	// One abort for the in-flight session, one batch delete for the
	// finished objects.
	var aborts, batches int
	for _, task := range env.queue.tasks {
		switch task.Kind {
		case simpleupload.TaskAbortMultipart:
			aborts++
			assert.Equal(t, pending.UploadID, task.UploadID)
		case simpleupload.TaskDeleteObjects:
			batches++
			assert.ElementsMatch(t, []string{first.ObjectKey, second.ObjectKey}, task.Keys)
		default:
			t.Fatalf("unexpected task kind %q", task.Kind)
		}
	}
	assert.Equal(t, 1, aborts)
	assert.Equal(t, 1, batches)
}
