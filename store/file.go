package store

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"oss.nandlabs.io/slumber/fsutils"
	"oss.nandlabs.io/slumber/task"
)

// pathLocks serializes access to a given store file across every FileStore
// instance in this process that targets it. The OS-level flock below only
// arbitrates between processes; within one process, two *Flock values opened
// against the same path do not exclude each other, so the in-process mutex
// carries that weight instead.
var pathLocks sync.Map // map[string]*sync.Mutex

func lockFor(path string) *sync.Mutex {
	actual, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// FileStore is the bundled comma-separated-file TaskStore. It is immutable
// after construction: the resolved, absolute path is fixed at NewFileStore
// time and every operation re-reads and rewrites the whole file under lock.
type FileStore struct {
	path string
}

var _ TaskStore = (*FileStore)(nil)

// NewFileStore resolves path per the store's path rules (a directory or a
// path ending in a separator gets the default file name; an extensionless
// path gets ".csv" appended) and returns a store targeting the result.
func NewFileStore(path string) (*FileStore, error) {
	resolved := fsutils.ResolveStorePath(path)
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: abs}, nil
}

// Path returns the store's resolved, absolute file path.
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Read(filter Filter) ([]*task.Record, error) {
	var records []*task.Record
	err := fs.transaction(false, func(content []byte) ([]byte, error) {
		decoded, err := decodeRecords(content)
		if err != nil {
			return nil, err
		}
		records = decoded
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return ApplyFilter(records, filter), nil
}

func (fs *FileStore) Create(queue string, runAt, initialRunAt, expireAt *time.Time, data string) (*task.Record, error) {
	var created *task.Record
	err := fs.transaction(true, func(content []byte) ([]byte, error) {
		records, err := decodeRecords(content)
		if err != nil {
			return nil, err
		}
		created = &task.Record{
			ID:           NextID(records),
			Queue:        queue,
			RunAt:        runAt,
			InitialRunAt: initialRunAt,
			ExpireAt:     expireAt,
			Data:         data,
		}
		records = append(records, created)
		return encodeRecords(records), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (fs *FileStore) Update(id int64, changes map[string]any) error {
	return fs.transaction(true, func(content []byte) ([]byte, error) {
		records, err := decodeRecords(content)
		if err != nil {
			return nil, err
		}
		found := false
		for _, r := range records {
			if r.ID == id {
				if err := ApplyChanges(r, changes); err != nil {
					return nil, err
				}
				found = true
				break
			}
		}
		if !found {
			return nil, nil
		}
		return encodeRecords(records), nil
	})
}

func (fs *FileStore) Delete(id int64) error {
	return fs.transaction(true, func(content []byte) ([]byte, error) {
		records, err := decodeRecords(content)
		if err != nil {
			return nil, err
		}
		idx := -1
		for i, r := range records {
			if r.ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil, nil
		}
		records = append(records[:idx], records[idx+1:]...)
		return encodeRecords(records), nil
	})
}

// transaction implements the store's file-transaction discipline:
//  1. acquire the path's in-process lock
//  2. open the file, creating it (and its parent directories) if absent;
//     read-write for a write transaction, read-only for a read one
//  3. acquire an exclusive OS-level advisory lock on the same path
//  4. read the file's current content
//  5. invoke fn; if write is true and fn returns non-nil content, rewind and
//     rewrite the file with it, truncating to the new length
//  6. release the OS-level lock, the file handle, and the in-process lock,
//     in that order, on every exit path
func (fs *FileStore) transaction(write bool, fn func(content []byte) ([]byte, error)) error {
	mu := lockFor(fs.path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return err
	}

	flag := os.O_RDONLY | os.O_CREATE
	if write {
		flag = os.O_RDWR | os.O_CREATE
	}
	file, err := os.OpenFile(fs.path, flag, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	fileLock := flock.New(fs.path)
	if err := fileLock.Lock(); err != nil {
		return err
	}
	defer fileLock.Unlock()

	content, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	newContent, err := fn(content)
	if err != nil {
		return err
	}
	if !write || newContent == nil {
		return nil
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := file.Write(newContent); err != nil {
		return err
	}
	return file.Truncate(int64(len(newContent)))
}
