package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/peterbourgon/diskv/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrInvalid is returned by a Store when there is no usable record.
var ErrInvalid = errors.New("settings record invalid")

var storeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "settings_store_failures",
	Help: "count of settings store operations that failed, by operation",
}, []string{"operation"})

// Store is durable storage for a single settings record.
type Store interface {
	// Read returns the stored record, or an error wrapping ErrInvalid if there is no record
	// or it is not marked valid.
	Read() (Settings, error)
	Write(Settings) error
}

// Load reads the settings.  An invalid record is replaced with Defaults.  Load always returns
// usable settings; the error explains why they are the in-memory defaults instead of what was
// stored.
func Load(st Store) (Settings, error) {
	s, err := st.Read()
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrInvalid) {
		storeFailures.WithLabelValues("read").Inc()
		return Defaults, fmt.Errorf("read settings: %w", err)
	}
	if err := st.Write(Defaults); err != nil {
		storeFailures.WithLabelValues("write").Inc()
		return Defaults, fmt.Errorf("write default settings: %w", err)
	}
	s, err = st.Read()
	if err != nil {
		storeFailures.WithLabelValues("read").Inc()
		return Defaults, fmt.Errorf("re-read default settings: %w", err)
	}
	return s, nil
}

// write writes s and reads it back.
func write(st Store, s Settings) error {
	if err := st.Write(s); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	got, err := st.Read()
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if got != s {
		return errors.New("verify: record read back does not match record written")
	}
	return nil
}

// Commit stores next, verifying the write and retrying once.  It returns the settings the clock
// should run with: next if it was stored, lastGood if it was not.
func Commit(st Store, next, lastGood Settings) (Settings, error) {
	next.Marker = Marker
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = write(st, next); err == nil {
			return next, nil
		}
		storeFailures.WithLabelValues("commit").Inc()
	}
	return lastGood, fmt.Errorf("commit settings (reverted to last good): %w", err)
}

// MemoryStore keeps the record in memory.
type MemoryStore struct {
	mu     sync.Mutex
	record *Settings

	// FailWrites causes the next FailWrites writes to fail.
	FailWrites int
	// Writes counts calls to Write.
	Writes int
}

// NewMemoryStore returns a store holding s, or nothing if s is nil.
func NewMemoryStore(s *Settings) *MemoryStore {
	m := new(MemoryStore)
	if s != nil {
		c := *s
		m.record = &c
	}
	return m
}

func (m *MemoryStore) Read() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return Settings{}, fmt.Errorf("no record: %w", ErrInvalid)
	}
	if !m.record.Valid() {
		return Settings{}, fmt.Errorf("marker %#x: %w", m.record.Marker, ErrInvalid)
	}
	return *m.record, nil
}

func (m *MemoryStore) Write(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.FailWrites > 0 {
		m.FailWrites--
		return errors.New("simulated write failure")
	}
	m.record = &s
	return nil
}

// diskvKey is the single key the record is stored under.
const diskvKey = "settings"

// DiskvStore keeps the record as JSON in a diskv directory.
type DiskvStore struct {
	d *diskv.Diskv
}

// NewDiskvStore returns a store rooted at dir.
func NewDiskvStore(dir string) *DiskvStore {
	return &DiskvStore{d: diskv.New(diskv.Options{
		BasePath: dir,
		TempDir:  filepath.Join(dir, ".tmp"),
		// No cache; Commit's verification must read back from disk.
		CacheSizeMax: 0,
	})}
}

func (s *DiskvStore) Read() (Settings, error) {
	data, err := s.d.Read(diskvKey)
	if errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("no record: %w", ErrInvalid)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read %q: %w", diskvKey, err)
	}
	var result Settings
	if err := json.Unmarshal(data, &result); err != nil {
		return Settings{}, fmt.Errorf("decode record: %v: %w", err, ErrInvalid)
	}
	if !result.Valid() {
		return Settings{}, fmt.Errorf("marker %#x: %w", result.Marker, ErrInvalid)
	}
	return result, nil
}

func (s *DiskvStore) Write(set Settings) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.d.Write(diskvKey, data); err != nil {
		return fmt.Errorf("write %q: %w", diskvKey, err)
	}
	return nil
}
