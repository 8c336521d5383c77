package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func createPersistence(t *testing.T) Persistence {
	p := NewPersistence(filepath.Join(t.TempDir(), "db", "nctfan.db"))
	require.NoError(t, p.Init())
	return p
}

func createRecord(timestamp time.Time, profile string, channelIds ...int) autotune.Record {
	calibration := map[int]autotune.CalibrationResult{}
	for _, id := range channelIds {
		calibration[id] = autotune.CalibrationResult{
			ChannelId: id,
			StartPwm:  77,
			PwmRpmMap: map[int]int{0: 0, 77: 450, 255: 1650},
			MaxRpm:    1650,
		}
	}
	return autotune.Record{
		Timestamp:   timestamp,
		Profile:     profile,
		Calibration: calibration,
		TempProfile: &autotune.TemperatureProfile{Min: 30, Max: 36, Avg: 33, Idle: 32},
	}
}

func TestPersistence_Init_CreatesParentDirectory(t *testing.T) {
	// GIVEN
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	p := NewPersistence(filepath.Join(dir, "nctfan.db"))

	// WHEN
	err := p.Init()

	// THEN
	assert.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPersistence_SaveAndLoadCalibration(t *testing.T) {
	// GIVEN
	p := createPersistence(t)
	timestamp := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	record := createRecord(timestamp, autotune.ProfileSilent, 1, 3)

	// WHEN
	err := p.SaveCalibration(record)

	// THEN
	require.NoError(t, err)
	calibration, err := p.LoadCalibration(3)
	require.NoError(t, err)
	assert.Equal(t, autotune.ProfileSilent, calibration.Profile)
	assert.True(t, timestamp.Equal(calibration.Timestamp))
	assert.Equal(t, record.Calibration[3], calibration.Result)
}

func TestPersistence_LoadCalibration_Missing(t *testing.T) {
	// GIVEN
	p := createPersistence(t)

	// WHEN
	_, err := p.LoadCalibration(2)

	// THEN
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPersistence_SaveCalibration_NewerRunReplacesChannel(t *testing.T) {
	// GIVEN
	p := createPersistence(t)
	first := createRecord(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), autotune.ProfileSilent, 1, 2)
	second := createRecord(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), autotune.ProfilePerformance, 2)
	require.NoError(t, p.SaveCalibration(first))

	// WHEN
	err := p.SaveCalibration(second)

	// THEN
	require.NoError(t, err)
	calibrations, err := p.LoadCalibrations()
	require.NoError(t, err)
	assert.Len(t, calibrations, 2)
	assert.Equal(t, autotune.ProfileSilent, calibrations[1].Profile)
	assert.Equal(t, autotune.ProfilePerformance, calibrations[2].Profile)

	runs, err := p.LoadRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, autotune.ProfileSilent, runs[0].Profile)
	assert.Equal(t, autotune.ProfilePerformance, runs[1].Profile)
}

func TestPersistence_DeleteCalibration(t *testing.T) {
	// GIVEN
	p := createPersistence(t)
	require.NoError(t, p.SaveCalibration(createRecord(time.Now(), autotune.ProfileBalanced, 4)))

	// WHEN
	err := p.DeleteCalibration(4)

	// THEN
	assert.NoError(t, err)
	_, err = p.LoadCalibration(4)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, p.DeleteCalibration(4))
}

func TestPersistence_DeleteCalibration_EmptyDb(t *testing.T) {
	// GIVEN
	p := createPersistence(t)

	// WHEN
	err := p.DeleteCalibration(1)

	// THEN
	assert.NoError(t, err)
}

func TestPersistence_LoadCalibration_CorruptDataIsDeleted(t *testing.T) {
	// GIVEN
	dbPath := filepath.Join(t.TempDir(), "nctfan.db")
	p := NewPersistence(dbPath)
	require.NoError(t, p.Init())

	db, err := bolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketCalibrations))
		if err != nil {
			return err
		}
		return b.Put([]byte("5"), []byte("{corrupt"))
	}))
	require.NoError(t, db.Close())

	// WHEN
	_, err = p.LoadCalibration(5)

	// THEN
	assert.ErrorIs(t, err, os.ErrNotExist)
	calibrations, err := p.LoadCalibrations()
	require.NoError(t, err)
	assert.Empty(t, calibrations)
}
