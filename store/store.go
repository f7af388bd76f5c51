package store

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

var (
	// ErrJobNotFound is returned when a job is not found in the journal.
	ErrJobNotFound = errors.New("job not found")
)

var (
	jobsBucket = []byte("jobs")
)

// JobState represents the current state of a file transfer.
type JobState string

const (
	StatePending    JobState = "Pending"
	StateInProgress JobState = "InProgress"
	StateCompleted  JobState = "Completed"
	StateFailed     JobState = "Failed"
)

// Direction tells whether a job brought content in or shipped it out.
type Direction string

const (
	DirectionFetch Direction = "fetch"
	DirectionPush  Direction = "push"
)

// JobRecord represents the state of a job in the journal.
type JobRecord struct {
	ID               string    `cbor:"1,keyasint"`
	RunID            string    `cbor:"2,keyasint,omitempty"`
	Direction        Direction `cbor:"3,keyasint"`
	SourcePath       string    `cbor:"4,keyasint"`
	DestinationPath  string    `cbor:"5,keyasint"`
	State            JobState  `cbor:"6,keyasint"`
	BytesTransferred int64     `cbor:"7,keyasint"`
	TotalBytes       int64     `cbor:"8,keyasint"`
	Digest           string    `cbor:"9,keyasint,omitempty"`
	Error            string    `cbor:"10,keyasint,omitempty"`
	UpdatedAt        time.Time `cbor:"11,keyasint"`
}

// Store defines the interface for journaling transfers.
type Store interface {
	SaveJob(job *JobRecord) error
	GetJob(id string) (*JobRecord, error)
	// ListJobs returns the records whose ID starts with prefix, ordered by ID.
	ListJobs(prefix string) ([]*JobRecord, error)
	Close() error
}

// BoltStore is a Store implementation backed by bbolt.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore at the given path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(jobsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create jobs bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveJob saves a job to the journal.
func (s *BoltStore) SaveJob(job *JobRecord) error {
	data, err := cbor.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(jobsBucket).Put([]byte(job.ID), data); err != nil {
			return fmt.Errorf("failed to put job: %w", err)
		}
		return nil
	})
}

// GetJob retrieves a job from the journal.
func (s *BoltStore) GetJob(id string) (*JobRecord, error) {
	var job JobRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(jobsBucket).Get([]byte(id))
		if data == nil {
			return ErrJobNotFound
		}
		if err := cbor.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// ListJobs returns the records whose ID starts with prefix. Keys are sorted
// bytewise by bbolt, so a cursor seek yields them in ID order.
func (s *BoltStore) ListJobs(prefix string) ([]*JobRecord, error) {
	var jobs []*JobRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(jobsBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var job JobRecord
			if err := cbor.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("failed to unmarshal job %q: %w", k, err)
			}
			jobs = append(jobs, &job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Close closes the underlying store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemoryStore keeps the journal in memory for runs without a state directory.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]JobRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]JobRecord)}
}

func (m *MemoryStore) SaveJob(job *JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *MemoryStore) GetJob(id string) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (m *MemoryStore) ListJobs(prefix string) ([]*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var jobs []*JobRecord
	for id, job := range m.jobs {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			job := job
			jobs = append(jobs, &job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (m *MemoryStore) Close() error { return nil }
