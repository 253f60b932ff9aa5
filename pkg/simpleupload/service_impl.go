package simpleupload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/simple-upload/pkg/simpleupload/objectkey"
)

// service implements the Service interface.
type service struct {
	repo       Repository
	store      ObjectStore
	cache      URLCache
	queue      CleanupQueue
	keys       objectkey.Generator
	validators map[MediaType]Validator

	partURLExpiry     time.Duration
	downloadURLExpiry time.Duration
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithRepository sets the upload record repository.
func WithRepository(repo Repository) Option {
	return func(s *service) { s.repo = repo }
}

// WithObjectStore sets the object store client.
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) { s.store = store }
}

// WithURLCache sets the presigned-download-URL cache.
func WithURLCache(cache URLCache) Option {
	return func(s *service) { s.cache = cache }
}

// WithCleanupQueue sets the queue receiving deferred cleanup tasks.
func WithCleanupQueue(queue CleanupQueue) Option {
	return func(s *service) { s.queue = queue }
}

// WithKeyGenerator overrides the object key generation strategy.
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) { s.keys = gen }
}

// WithValidator registers the filename validator for a media type. A media
// type without a validator cannot be uploaded through this service.
func WithValidator(mediaType MediaType, v Validator) Option {
	return func(s *service) {
		if s.validators == nil {
			s.validators = make(map[MediaType]Validator)
		}
		s.validators[mediaType] = v
	}
}

// WithPartURLExpiry overrides the part upload URL lifetime.
func WithPartURLExpiry(d time.Duration) Option {
	return func(s *service) { s.partURLExpiry = d }
}

// WithDownloadURLExpiry overrides the download URL lifetime.
func WithDownloadURLExpiry(d time.Duration) Option {
	return func(s *service) { s.downloadURLExpiry = d }
}

// New creates a new service instance with the given options.
func New(options ...Option) (Service, error) {
	s := &service{
		cache:             NoopURLCache(),
		queue:             NoopCleanupQueue(),
		keys:              objectkey.NewPrefixedGenerator(),
		validators:        make(map[MediaType]Validator),
		partURLExpiry:     DefaultPartURLExpiry,
		downloadURLExpiry: DefaultDownloadURLExpiry,
	}

	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	return s, nil
}

func (s *service) InitiateUpload(ctx context.Context, req InitiateUploadRequest) (*InitiateUploadResult, error) {
	validator, ok := s.validators[req.MediaType]
	if !ok {
		return nil, fmt.Errorf("media type %q not configured", req.MediaType)
	}
	if err := validator.Validate(req.FileName); err != nil {
		return nil, err
	}

	key := s.keys.GenerateKey(req.MediaType.KeyPrefix(), req.FileName)

	uploadID, err := s.store.CreateMultipartUpload(ctx, key, contentTypeFor(req.FileName))
	if err != nil {
		return nil, &UploadError{Key: key, Op: "initiate", Err: err}
	}

	now := time.Now().UTC()
	record := &UploadRecord{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		MediaType:    req.MediaType,
		FileName:     req.FileName,
		Title:        req.Title,
		Description:  req.Description,
		ObjectKey:    key,
		UploadID:     &uploadID,
		UploadStatus: UploadStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUploadRecord(ctx, record); err != nil {
		// The session is already open on the store; it must not leak.
		s.queue.Enqueue(CleanupTask{Kind: TaskAbortMultipart, Key: key, UploadID: uploadID})
		return nil, &UploadError{Key: key, UploadID: uploadID, Op: "initiate", Err: err}
	}

	return &InitiateUploadResult{UploadID: uploadID, ObjectKey: key, Record: record}, nil
}

func (s *service) GeneratePartURL(ctx context.Context, req PartURLRequest) (string, error) {
	if req.PartNumber < MinPartNumber || req.PartNumber > MaxPartNumber {
		return "", fmt.Errorf("%w: %d", ErrInvalidPartNumber, req.PartNumber)
	}

	record, err := s.loadPending(ctx, req.OwnerID, req.ObjectKey, req.UploadID)
	if err != nil {
		return "", err
	}

	url, err := s.store.PresignUploadPart(ctx, record.ObjectKey, req.UploadID, req.PartNumber, s.partURLExpiry)
	if err != nil {
		return "", &UploadError{Key: record.ObjectKey, UploadID: req.UploadID, Op: "part_url", Err: err}
	}
	return url, nil
}

func (s *service) CompleteUpload(ctx context.Context, req CompleteUploadRequest) (*UploadRecord, error) {
	record, err := s.loadPending(ctx, req.OwnerID, req.ObjectKey, req.UploadID)
	if err != nil {
		return nil, err
	}

	// Some store-side failures (missing parts, expired part URLs) only
	// manifest at completion time; verify the data is actually there before
	// finalizing anything.
	if err := s.store.Head(ctx, record.ObjectKey); err != nil {
		return nil, &UploadError{Key: record.ObjectKey, UploadID: req.UploadID, Op: "complete", Err: err}
	}

	if err := s.store.CompleteMultipartUpload(ctx, record.ObjectKey, req.UploadID, req.Parts); err != nil {
		// Record stays pending; the client may retry with the same session.
		return nil, &UploadError{Key: record.ObjectKey, UploadID: req.UploadID, Op: "complete", Err: err}
	}

	if err := s.repo.FinalizeUpload(ctx, record.ID, req.UploadID); err != nil {
		if errors.Is(err, ErrUploadNotFound) {
			// Lost the race against a concurrent abort or delete: the row is
			// gone but the store call above already assembled the object. It
			// must not leak.
			s.queue.Enqueue(CleanupTask{Kind: TaskDeleteObject, Key: record.ObjectKey})
		}
		return nil, err
	}

	record.UploadStatus = UploadStatusFinished
	record.UploadID = nil
	record.UpdatedAt = time.Now().UTC()

	slog.Info("upload completed", "key", record.ObjectKey, "upload_id", req.UploadID, "owner_id", req.OwnerID)
	return record, nil
}

func (s *service) AbortUpload(ctx context.Context, req AbortUploadRequest) error {
	record, err := s.repo.GetByUploadID(ctx, req.UploadID)
	if errors.Is(err, ErrUploadNotFound) {
		// Either the session was already aborted (idempotent success) or it
		// was completed, in which case the key now holds a finished record
		// and the abort is a conflict.
		if finished, ferr := s.repo.GetByObjectKey(ctx, req.ObjectKey); ferr == nil && finished.UploadStatus == UploadStatusFinished {
			return ErrUploadNotFound
		}
		return nil
	}
	if err != nil {
		return err
	}

	if record.OwnerID != req.OwnerID || record.ObjectKey != req.ObjectKey || record.UploadStatus != UploadStatusPending {
		return ErrUploadNotFound
	}

	if err := s.store.AbortMultipartUpload(ctx, record.ObjectKey, req.UploadID); err != nil {
		return &UploadError{Key: record.ObjectKey, UploadID: req.UploadID, Op: "abort", Err: err}
	}

	if err := s.repo.DeletePending(ctx, record.ID, req.UploadID); err != nil {
		if errors.Is(err, ErrUploadNotFound) {
			// Lost the race. A concurrent complete leaves a finished record
			// under the key, making this abort a conflict; a concurrent
			// abort leaves nothing, making it an idempotent success.
			if finished, ferr := s.repo.GetByObjectKey(ctx, req.ObjectKey); ferr == nil && finished.UploadStatus == UploadStatusFinished {
				return ErrUploadNotFound
			}
			return nil
		}
		return err
	}

	slog.Info("upload aborted", "key", record.ObjectKey, "upload_id", req.UploadID, "owner_id", req.OwnerID)
	return nil
}

func (s *service) GetDownloadURL(ctx context.Context, objectKey string) (string, error) {
	record, err := s.repo.GetByObjectKey(ctx, objectKey)
	if err != nil {
		return "", err
	}
	if record.UploadStatus != UploadStatusFinished {
		return "", ErrUploadNotFound
	}

	cacheKey := DownloadURLCacheKey(objectKey)
	if url, ok := s.cache.Get(ctx, cacheKey); ok {
		return url, nil
	}

	url, err := s.store.PresignDownload(ctx, objectKey, s.downloadURLExpiry)
	if err != nil {
		return "", &UploadError{Key: objectKey, Op: "download_url", Err: err}
	}

	// TTL equals the URL's own expiry, so the cache never outlives it.
	s.cache.Set(ctx, cacheKey, url, s.downloadURLExpiry)
	return url, nil
}

func (s *service) UploadDirect(ctx context.Context, req DirectUploadRequest) (*UploadRecord, error) {
	validator, ok := s.validators[req.MediaType]
	if !ok {
		return nil, fmt.Errorf("media type %q not configured", req.MediaType)
	}
	if err := validator.Validate(req.FileName); err != nil {
		return nil, err
	}

	key := s.keys.GenerateKey(req.MediaType.KeyPrefix(), req.FileName)

	if err := s.store.Upload(ctx, key, req.Body, contentTypeFor(req.FileName)); err != nil {
		return nil, &UploadError{Key: key, Op: "upload_direct", Err: err}
	}

	now := time.Now().UTC()
	record := &UploadRecord{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		MediaType:    req.MediaType,
		FileName:     req.FileName,
		Title:        req.Title,
		Description:  req.Description,
		ObjectKey:    key,
		UploadStatus: UploadStatusFinished,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUploadRecord(ctx, record); err != nil {
		// The object is already stored; it must not become an orphan.
		s.queue.Enqueue(CleanupTask{Kind: TaskDeleteObject, Key: key})
		return nil, &UploadError{Key: key, Op: "upload_direct", Err: err}
	}

	return record, nil
}

func (s *service) DeleteMedia(ctx context.Context, ownerID uuid.UUID, objectKey string) error {
	record, err := s.repo.DeleteByObjectKey(ctx, ownerID, objectKey)
	if err != nil {
		return err
	}

	s.enqueueRecordCleanup(record)
	return nil
}

func (s *service) DeleteOwnerMedia(ctx context.Context, ownerID uuid.UUID) error {
	records, err := s.repo.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return err
	}

	var finishedKeys []string
	for _, record := range records {
		if record.UploadStatus == UploadStatusFinished {
			finishedKeys = append(finishedKeys, record.ObjectKey)
			continue
		}
		s.enqueueRecordCleanup(record)
	}

	if len(finishedKeys) > 0 {
		s.queue.Enqueue(CleanupTask{Kind: TaskDeleteObjects, Keys: finishedKeys})
	}
	return nil
}

// enqueueRecordCleanup schedules the object-store side effect of a deleted
// record: an object delete for a finished upload, or a session abort when
// the deletion raced an in-flight one.
func (s *service) enqueueRecordCleanup(record *UploadRecord) {
	switch {
	case record.UploadStatus == UploadStatusFinished:
		s.queue.Enqueue(CleanupTask{
			Kind:     TaskDeleteObject,
			Key:      record.ObjectKey,
			CacheKey: DownloadURLCacheKey(record.ObjectKey),
		})
	case record.UploadID != nil:
		s.queue.Enqueue(CleanupTask{
			Kind:     TaskAbortMultipart,
			Key:      record.ObjectKey,
			UploadID: *record.UploadID,
		})
	}
}

// loadPending loads a record by its open session and checks the caller may
// act on it. Any mismatch collapses into ErrUploadNotFound.
func (s *service) loadPending(ctx context.Context, ownerID uuid.UUID, objectKey, uploadID string) (*UploadRecord, error) {
	record, err := s.repo.GetByUploadID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != ownerID || record.ObjectKey != objectKey || record.UploadStatus != UploadStatusPending {
		return nil, ErrUploadNotFound
	}
	return record, nil
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
