package dataset

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"superstore-dashboard/internal/models"
)

const snapshotVersion = "v1"

// SnapshotStore persists parsed datasets so a restart can skip parsing when
// the source file has not changed.
type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

func (s *SnapshotStore) filename(csvPath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(csvPath)
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.gob", name, snapshotVersion))
}

func (s *SnapshotStore) Save(ds *models.Dataset) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "snapshot-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(ds); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.filename(ds.Path))
}

// Load returns the stored dataset for csvPath if it was built from a source
// file with the given modification time.
func (s *SnapshotStore) Load(csvPath string, modTime time.Time) (*models.Dataset, error) {
	file, err := os.Open(s.filename(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ds models.Dataset
	if err := gob.NewDecoder(file).Decode(&ds); err != nil {
		return nil, err
	}
	if !ds.ModTime.Equal(modTime) {
		return nil, fmt.Errorf("snapshot is stale: built from %s, source is %s",
			ds.ModTime.Format(time.RFC3339Nano), modTime.Format(time.RFC3339Nano))
	}
	return &ds, nil
}
