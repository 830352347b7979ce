// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/violations"
)

// insertBatchSize bounds one INSERT statement; a mid-batch failure reports
// the rows already inserted rather than losing them.
const insertBatchSize = 100

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	ExistingIDs() (map[int64]struct{}, error)
	ExistingCasefiles() (map[string]struct{}, error)
	LatestInvestigationDate() (*time.Time, error)
	InsertViolations(records []violations.Record) (int, error)
	AllViolations() ([]violations.Record, error)

	GetCheckpoint() (*Checkpoint, error)
	UpdateCheckpoint(lastChecked time.Time, newCount int) error
	AcquireLease(owner string, ttl time.Duration) (bool, error)
	ReleaseLease(owner string) error

	WatchedLocations() ([]WatchedLocation, error)
	PushDevices() ([]Device, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store instance based on the configured output backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// ExistingIDs returns the set of all stored upstream record ids.
func (ds *DataStore) ExistingIDs() (map[int64]struct{}, error) {
	var ids []int64
	if err := ds.DB.Model(&Violation{}).Pluck("id", &ids).Error; err != nil {
		return nil, dbError(err, "getting existing ids")
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ExistingCasefiles returns the set of all stored casefile numbers,
// excluding empty values.
func (ds *DataStore) ExistingCasefiles() (map[string]struct{}, error) {
	var numbers []string
	err := ds.DB.Model(&Violation{}).
		Where("casefile_number <> ''").
		Distinct().
		Pluck("casefile_number", &numbers).Error
	if err != nil {
		return nil, dbError(err, "getting existing casefiles")
	}
	set := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		set[n] = struct{}{}
	}
	return set, nil
}

// LatestInvestigationDate returns the max stored investigation date, or nil
// when the store is empty.
func (ds *DataStore) LatestInvestigationDate() (*time.Time, error) {
	var v Violation
	err := ds.DB.Order("investigation_date DESC").First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err, "getting latest investigation date")
	}
	d := v.InvestigationDate
	return &d, nil
}

// InsertViolations bulk-inserts records whose ids the caller has verified
// as new. Duplicate-key rows are skipped, not errored, so overlapping runs
// degrade to redundant work. Returns the number of rows actually inserted;
// on a mid-batch failure the count of rows saved before the failure is
// returned together with the error.
func (ds *DataStore) InsertViolations(records []violations.Record) (int, error) {
	inserted := 0
	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))

		batch := make([]Violation, 0, end-start)
		for _, r := range records[start:end] {
			batch = append(batch, toModel(&r))
		}

		result := ds.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
		if result.Error != nil {
			return inserted, dbError(result.Error, "inserting violations")
		}
		inserted += int(result.RowsAffected)
	}
	return inserted, nil
}

// AllViolations returns every stored record newest first. Used to derive
// open-case counts for the no-news email summary.
func (ds *DataStore) AllViolations() ([]violations.Record, error) {
	var rows []Violation
	if err := ds.DB.Order("investigation_date DESC").Find(&rows).Error; err != nil {
		return nil, dbError(err, "getting all violations")
	}
	records := make([]violations.Record, 0, len(rows))
	for i := range rows {
		records = append(records, toRecord(&rows[i]))
	}
	return records, nil
}

// GetCheckpoint returns the single run-state row, creating it with
// conservative defaults (checks on, all channels off) if missing.
func (ds *DataStore) GetCheckpoint() (*Checkpoint, error) {
	var cp Checkpoint
	err := ds.DB.Where(Checkpoint{ID: 1}).
		Attrs(Checkpoint{ChecksEnabled: true}).
		FirstOrCreate(&cp).Error
	if err != nil {
		return nil, dbError(err, "getting checkpoint")
	}
	return &cp, nil
}

// UpdateCheckpoint records the timestamp and new-record count of the run
// that just completed. The count is this run's observation, not cumulative.
func (ds *DataStore) UpdateCheckpoint(lastChecked time.Time, newCount int) error {
	err := ds.DB.Model(&Checkpoint{}).Where("id = ?", 1).
		Updates(map[string]any{
			"last_checked_at": lastChecked,
			"last_new_count":  newCount,
		}).Error
	if err != nil {
		return errors.New(fmt.Errorf("updating checkpoint: %w", err)).
			Component("datastore").
			Category(errors.CategoryCheckpoint).
			Build()
	}
	return nil
}

// AcquireLease takes the checkpoint-row lease for owner if it is free or
// expired. Returns false when another live owner holds it, so overlapping
// runs skip instead of double-fetching.
func (ds *DataStore) AcquireLease(owner string, ttl time.Duration) (bool, error) {
	acquired := false
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var cp Checkpoint
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(Checkpoint{ID: 1}).
			Attrs(Checkpoint{ChecksEnabled: true}).
			FirstOrCreate(&cp).Error; err != nil {
			return err
		}

		now := time.Now()
		if cp.LeaseOwner != "" && cp.LeaseOwner != owner &&
			cp.LeaseExpiresAt != nil && cp.LeaseExpiresAt.After(now) {
			return nil
		}

		acquired = true
		expiry := now.Add(ttl)
		return tx.Model(&Checkpoint{}).Where("id = ?", 1).
			Updates(map[string]any{
				"lease_owner":      owner,
				"lease_expires_at": &expiry,
			}).Error
	})
	if err != nil {
		return false, dbError(err, "acquiring lease")
	}
	return acquired, nil
}

// ReleaseLease clears the lease if owner still holds it.
func (ds *DataStore) ReleaseLease(owner string) error {
	err := ds.DB.Model(&Checkpoint{}).
		Where("id = ? AND lease_owner = ?", 1, owner).
		Updates(map[string]any{
			"lease_owner":      "",
			"lease_expires_at": nil,
		}).Error
	if err != nil {
		return dbError(err, "releasing lease")
	}
	return nil
}

// WatchedLocations returns every tracked address/parcel pair.
func (ds *DataStore) WatchedLocations() ([]WatchedLocation, error) {
	var locations []WatchedLocation
	if err := ds.DB.Order("id").Find(&locations).Error; err != nil {
		return nil, dbError(err, "getting watched locations")
	}
	return locations, nil
}

// PushDevices returns devices eligible for push delivery: explicit
// permission granted and a recognized platform.
func (ds *DataStore) PushDevices() ([]Device, error) {
	var devices []Device
	err := ds.DB.Where("push_permission = ? AND platform = ?", true, "ios").
		Find(&devices).Error
	if err != nil {
		return nil, dbError(err, "getting push devices")
	}
	return devices, nil
}

func toModel(r *violations.Record) Violation {
	return Violation{
		ID:                r.ID,
		CasefileNumber:    r.CasefileNumber,
		Address:           r.Address,
		ParcelID:          r.ParcelID,
		Status:            string(violations.ParseStatus(r.Status)),
		InvestigationDate: r.InvestigationDate,
		Description:       r.Description,
		CodeSection:       r.CodeSection,
		SpecInstructions:  r.SpecInstructions,
		Outcome:           r.Outcome,
		Findings:          r.Findings,
	}
}

func toRecord(v *Violation) violations.Record {
	return violations.Record{
		ID:                v.ID,
		CasefileNumber:    v.CasefileNumber,
		Address:           v.Address,
		ParcelID:          v.ParcelID,
		Status:            string(violations.ParseStatus(v.Status)),
		InvestigationDate: v.InvestigationDate,
		Description:       v.Description,
		CodeSection:       v.CodeSection,
		SpecInstructions:  v.SpecInstructions,
		Outcome:           v.Outcome,
		Findings:          v.Findings,
	}
}

func dbError(err error, operation string) error {
	return errors.New(fmt.Errorf("%s: %w", operation, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}
