package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/violations"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(id int64, casefile, date string) violations.Record {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return violations.Record{
		ID:                id,
		CasefileNumber:    casefile,
		Address:           "123 Main St",
		ParcelID:          "0001-A-00100",
		Status:            "IN VIOLATION",
		InvestigationDate: d,
		Description:       "Overgrown vegetation",
	}
}

func TestInsertAndLookup(t *testing.T) {
	store := openTestStore(t)

	inserted, err := store.InsertViolations([]violations.Record{
		testRecord(1, "C1", "2025-03-01"),
		testRecord(2, "C2", "2025-03-04"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	ids, err := store.ExistingIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	_, ok := ids[1]
	assert.True(t, ok)

	casefiles, err := store.ExistingCasefiles()
	require.NoError(t, err)
	assert.Len(t, casefiles, 2)
	_, ok = casefiles["C1"]
	assert.True(t, ok)
}

func TestInsertIgnoresDuplicateIDs(t *testing.T) {
	store := openTestStore(t)

	_, err := store.InsertViolations([]violations.Record{testRecord(1, "C1", "2025-03-01")})
	require.NoError(t, err)

	// Re-inserting the same id must not error; overlapping runs degrade to
	// redundant work.
	inserted, err := store.InsertViolations([]violations.Record{
		testRecord(1, "C1", "2025-03-01"),
		testRecord(2, "C1", "2025-03-02"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	ids, err := store.ExistingIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestExistingCasefilesExcludesEmpty(t *testing.T) {
	store := openTestStore(t)

	_, err := store.InsertViolations([]violations.Record{
		testRecord(1, "", "2025-03-01"),
		testRecord(2, "C1", "2025-03-02"),
	})
	require.NoError(t, err)

	casefiles, err := store.ExistingCasefiles()
	require.NoError(t, err)
	assert.Len(t, casefiles, 1)
	_, ok := casefiles[""]
	assert.False(t, ok)
}

func TestLatestInvestigationDate(t *testing.T) {
	store := openTestStore(t)

	latest, err := store.LatestInvestigationDate()
	require.NoError(t, err)
	assert.Nil(t, latest, "empty store should have no watermark")

	_, err = store.InsertViolations([]violations.Record{
		testRecord(1, "C1", "2025-03-01"),
		testRecord(2, "C1", "2025-03-07"),
		testRecord(3, "C2", "2025-03-03"),
	})
	require.NoError(t, err)

	latest, err = store.LatestInvestigationDate()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2025-03-07", latest.Format("2006-01-02"))
}

func TestCheckpointDefaults(t *testing.T) {
	store := openTestStore(t)

	cp, err := store.GetCheckpoint()
	require.NoError(t, err)
	assert.True(t, cp.ChecksEnabled)
	assert.False(t, cp.EmailEnabled)
	assert.False(t, cp.SMSEnabled)
	assert.False(t, cp.PushEnabled)
}

func TestUpdateCheckpoint(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetCheckpoint()
	require.NoError(t, err)

	checkedAt := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateCheckpoint(checkedAt, 5))

	cp, err := store.GetCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, 5, cp.LastNewCount)
	assert.Equal(t, checkedAt.Unix(), cp.LastCheckedAt.Unix())
}

func TestLease(t *testing.T) {
	store := openTestStore(t)

	ok, err := store.AcquireLease("run-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second owner cannot take a live lease.
	ok, err = store.AcquireLease("run-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// The holder can re-acquire its own lease.
	ok, err = store.AcquireLease("run-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.ReleaseLease("run-a"))

	ok, err = store.AcquireLease("run-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseLeaseClearsExpiry(t *testing.T) {
	store := openTestStore(t)

	ok, err := store.AcquireLease("run-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.ReleaseLease("run-a"))

	// A released lease stores NULL, not a zero timestamp; zero is out of
	// range for MySQL timestamp columns under strict mode.
	cp, err := store.GetCheckpoint()
	require.NoError(t, err)
	assert.Empty(t, cp.LeaseOwner)
	assert.Nil(t, cp.LeaseExpiresAt)
}

func TestLeaseExpiryIsReclaimable(t *testing.T) {
	store := openTestStore(t)

	ok, err := store.AcquireLease("run-a", -time.Minute) // already expired
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireLease("run-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPushDevicesFiltering(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.DB.Create(&Device{Token: "tok-a", Platform: "ios", PushPermission: true}).Error)
	require.NoError(t, store.DB.Create(&Device{Token: "tok-b", Platform: "ios", PushPermission: false}).Error)
	require.NoError(t, store.DB.Create(&Device{Token: "tok-c", Platform: "android", PushPermission: true}).Error)

	devices, err := store.PushDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "tok-a", devices[0].Token)
}

func TestStatusNormalizedOnReadBoundary(t *testing.T) {
	store := openTestStore(t)

	r := testRecord(1, "C1", "2025-03-01")
	r.Status = "in violation"
	_, err := store.InsertViolations([]violations.Record{r})
	require.NoError(t, err)

	records, err := store.AllViolations()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(violations.StatusInViolation), records[0].Status)
}
