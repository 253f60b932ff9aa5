// Package memory implements an in-memory simpleupload.ObjectStore for tests
// and local development. Multipart sessions are simulated: tests stage part
// data with PutPart in place of the presigned-URL uploads a real client
// would perform.
package memory

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
)

type session struct {
	objectKey string
	parts     map[int32][]byte
	etags     map[int32]string
}

// Store is an in-memory object store.
type Store struct {
	mu           sync.RWMutex
	objects      map[string][]byte
	contentTypes map[string]string
	sessions     map[string]*session // keyed by upload id
	urlSeq       int
}

// New creates a new in-memory object store.
func New() *Store {
	return &Store{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		sessions:     make(map[string]*session),
	}
}

func (s *Store) CreateMultipartUpload(ctx context.Context, objectKey, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uploadID := uuid.NewString()
	s.sessions[uploadID] = &session{
		objectKey: objectKey,
		parts:     make(map[int32][]byte),
		etags:     make(map[int32]string),
	}
	s.contentTypes[objectKey] = contentType

	return uploadID, nil
}

func (s *Store) PresignUploadPart(ctx context.Context, objectKey, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	if partNumber < simpleupload.MinPartNumber || partNumber > simpleupload.MaxPartNumber {
		return "", fmt.Errorf("%w: %d", simpleupload.ErrInvalidPartNumber, partNumber)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[uploadID]
	if !ok || sess.objectKey != objectKey {
		return "", s.storageError("presign_upload_part", objectKey, simpleupload.ErrObjectMissing)
	}

	s.urlSeq++
	return fmt.Sprintf("memory://upload/%s/%s/%d?seq=%d", uploadID, objectKey, partNumber, s.urlSeq), nil
}

// PutPart stages part data for an open session, standing in for the PUT a
// client would issue against the presigned URL. Returns the part's ETag.
func (s *Store) PutPart(objectKey, uploadID string, partNumber int32, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[uploadID]
	if !ok || sess.objectKey != objectKey {
		return "", s.storageError("put_part", objectKey, simpleupload.ErrObjectMissing)
	}

	etag := fmt.Sprintf("%x", md5.Sum(data))
	sess.parts[partNumber] = append([]byte(nil), data...)
	sess.etags[partNumber] = etag

	return etag, nil
}

func (s *Store) CompleteMultipartUpload(ctx context.Context, objectKey, uploadID string, parts []simpleupload.CompletedPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[uploadID]
	if !ok || sess.objectKey != objectKey {
		return s.storageError("complete_multipart_upload", objectKey, simpleupload.ErrObjectMissing)
	}

	var assembled []byte
	for _, part := range parts {
		data, ok := sess.parts[part.PartNumber]
		if !ok || sess.etags[part.PartNumber] != part.ETag {
			return s.storageError("complete_multipart_upload", objectKey,
				fmt.Errorf("%w: part %d", simpleupload.ErrObjectMissing, part.PartNumber))
		}
		assembled = append(assembled, data...)
	}

	s.objects[objectKey] = assembled
	delete(s.sessions, uploadID)

	return nil
}

func (s *Store) AbortMultipartUpload(ctx context.Context, objectKey, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Aborting an unknown session is success.
	delete(s.sessions, uploadID)
	return nil
}

func (s *Store) PresignDownload(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.urlSeq++
	return fmt.Sprintf("memory://download/%s?expires=%d&seq=%d",
		objectKey, time.Now().Add(expires).Unix(), s.urlSeq), nil
}

func (s *Store) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return s.storageError("upload", objectKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[objectKey] = data
	s.contentTypes[objectKey] = contentType
	return nil
}

func (s *Store) Delete(ctx context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, objectKey)
	delete(s.contentTypes, objectKey)
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, objectKeys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range objectKeys {
		delete(s.objects, key)
		delete(s.contentTypes, key)
	}
	return nil
}

func (s *Store) Head(ctx context.Context, objectKey string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[objectKey]; ok {
		return nil
	}
	// An open session with staged parts counts as present: completion has
	// the data it needs.
	for _, sess := range s.sessions {
		if sess.objectKey == objectKey && len(sess.parts) > 0 {
			return nil
		}
	}

	return s.storageError("head", objectKey, simpleupload.ErrObjectMissing)
}

// GetObject returns a stored object's bytes, for test assertions.
func (s *Store) GetObject(objectKey string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[objectKey]
	return data, ok
}

// OpenSessions returns the number of open multipart sessions, for test
// assertions about leaked sessions.
func (s *Store) OpenSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *Store) storageError(op, key string, err error) error {
	return &simpleupload.StorageError{
		Bucket: "memory",
		Key:    key,
		Op:     op,
		Err:    err,
	}
}
