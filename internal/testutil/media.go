package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FakeMediaStore stands in for the S3 store. Like the real one it removes the
// local file on every path.
type FakeMediaStore struct {
	mu          sync.Mutex
	baseURL     string
	failUploads bool
	emptyURLs   bool
	failDeletes bool
	attempts    int
	uploaded    []string
	deleted     []string
}

func NewFakeMediaStore() *FakeMediaStore {
	return &FakeMediaStore{baseURL: "https://media.test/accounts"}
}

func (f *FakeMediaStore) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}
	defer os.Remove(localPath)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.failUploads {
		return "", errors.New("media store unavailable")
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", errors.Wrap(err, "stat upload")
	}
	f.uploaded = append(f.uploaded, localPath)
	if f.emptyURLs {
		return "", nil
	}
	return fmt.Sprintf("%s/%s%s", f.baseURL, uuid.NewString(), filepath.Ext(localPath)), nil
}

func (f *FakeMediaStore) Delete(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDeletes {
		return errors.New("media store unavailable")
	}
	f.deleted = append(f.deleted, url)
	return nil
}

// FailUploads makes every later upload return an error.
func (f *FakeMediaStore) FailUploads(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUploads = fail
}

// ReturnEmptyURLs makes later uploads succeed without producing a URL.
func (f *FakeMediaStore) ReturnEmptyURLs(empty bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emptyURLs = empty
}

func (f *FakeMediaStore) FailDeletes(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDeletes = fail
}

// Attempts counts Upload calls that carried a file.
func (f *FakeMediaStore) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// Uploaded lists the local paths handed to Upload that reached the store.
func (f *FakeMediaStore) Uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploaded...)
}

func (f *FakeMediaStore) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}
