package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/ui"
	bolt "go.etcd.io/bbolt"
)

const (
	BucketCalibrations = "calibrations"
	BucketRuns         = "runs"
)

// Calibration is the most recent measurement of a single channel
type Calibration struct {
	Timestamp time.Time                  `json:"timestamp"`
	Profile   string                     `json:"profile"`
	Result    autotune.CalibrationResult `json:"result"`
}

type Persistence interface {
	Init() error

	// SaveCalibration stores an applied auto-tune run and the per channel results it contains
	SaveCalibration(record autotune.Record) error
	LoadCalibration(channelId int) (Calibration, error)
	LoadCalibrations() (map[int]Calibration, error)
	DeleteCalibration(channelId int) error

	// LoadRuns returns all stored runs, oldest first
	LoadRuns() ([]autotune.Record, error)
}

type persistence struct {
	dbPath string
}

func NewPersistence(dbPath string) Persistence {
	return &persistence{
		dbPath: dbPath,
	}
}

func (p persistence) Init() (err error) {
	parentDir := filepath.Dir(p.dbPath)
	_, err = os.Stat(parentDir)
	if errors.Is(err, os.ErrNotExist) {
		ui.Info("Creating directory for db: %s", parentDir)
		err = os.MkdirAll(parentDir, 0755)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p persistence) openPersistence() (db *bolt.DB, err error) {
	db, err = bolt.Open(p.dbPath, 0600, &bolt.Options{Timeout: 1 * time.Minute})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func channelKey(channelId int) []byte {
	return []byte(strconv.Itoa(channelId))
}

func runKey(timestamp time.Time) []byte {
	return []byte(timestamp.UTC().Format(time.RFC3339Nano))
}

func (p persistence) SaveCalibration(record autotune.Record) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	runData, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return db.Update(func(tx *bolt.Tx) error {
		runs, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		if err = runs.Put(runKey(record.Timestamp), runData); err != nil {
			return err
		}

		calibrations, err := tx.CreateBucketIfNotExists([]byte(BucketCalibrations))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		for id, result := range record.Calibration {
			data, err := json.Marshal(Calibration{
				Timestamp: record.Timestamp,
				Profile:   record.Profile,
				Result:    result,
			})
			if err != nil {
				return err
			}
			if err = calibrations.Put(channelKey(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadCalibration loads the latest calibration of the given channel
func (p persistence) LoadCalibration(channelId int) (Calibration, error) {
	db, err := p.openPersistence()
	if err != nil {
		return Calibration{}, err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	key := channelKey(channelId)

	var calibration Calibration
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketCalibrations))
		if b == nil {
			return os.ErrNotExist
		}
		v := b.Get(key)
		if v == nil {
			return os.ErrNotExist
		}

		err := json.Unmarshal(v, &calibration)
		if err != nil {
			// if we cannot read the saved data, delete it
			ui.Warning("Unable to unmarshal saved calibration of channel %d: %v", channelId, err)
			if err := b.Delete(key); err != nil {
				ui.Error("Unable to delete corrupt data key %s: %v", key, err)
			}
			return os.ErrNotExist
		}
		return nil
	})

	return calibration, err
}

func (p persistence) LoadCalibrations() (map[int]Calibration, error) {
	db, err := p.openPersistence()
	if err != nil {
		return nil, err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	result := map[int]Calibration{}
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketCalibrations))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			id, err := strconv.Atoi(string(k))
			if err != nil {
				ui.Warning("Ignoring unexpected calibration key %s", k)
				return nil
			}
			var calibration Calibration
			if err := json.Unmarshal(v, &calibration); err != nil {
				ui.Warning("Unable to unmarshal saved calibration of channel %d: %v", id, err)
				return nil
			}
			result[id] = calibration
			return nil
		})
	})

	return result, err
}

func (p persistence) DeleteCalibration(channelId int) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	key := channelKey(channelId)

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketCalibrations))
		if b == nil {
			// no calibration bucket yet
			return nil
		}
		if b.Get(key) == nil {
			return nil
		}
		return b.Delete(key)
	})
}

func (p persistence) LoadRuns() ([]autotune.Record, error) {
	db, err := p.openPersistence()
	if err != nil {
		return nil, err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	var result []autotune.Record
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var record autotune.Record
			if err := json.Unmarshal(v, &record); err != nil {
				ui.Warning("Unable to unmarshal saved auto-tune run %s: %v", k, err)
				return nil
			}
			result = append(result, record)
			return nil
		})
	})

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, err
}
