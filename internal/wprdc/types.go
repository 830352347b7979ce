package wprdc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/violations"
)

// searchResponse is the CKAN datastore_search_sql envelope.
type searchResponse struct {
	Success bool `json:"success"`
	Result  *struct {
		Records []apiRecord `json:"records"`
	} `json:"result"`
}

// apiRecord is one violation row as returned by the CKAN API. All free-text
// fields arrive as strings; investigation_date carries an optional time
// component which is discarded.
type apiRecord struct {
	ID                int64   `json:"_id"`
	CasefileNumber    string  `json:"casefile_number"`
	Address           string  `json:"address"`
	ParcelID          string  `json:"parcel_id"`
	Status            string  `json:"status"`
	InvestigationDate apiDate `json:"investigation_date"`
	Description       string  `json:"violation_description"`
	CodeSection       string  `json:"violation_code_section"`
	SpecInstructions  string  `json:"violation_spec_instructions"`
	Outcome           string  `json:"investigation_outcome"`
	Findings          string  `json:"investigation_findings"`
}

// apiDate unmarshals CKAN date strings, with or without a time component.
type apiDate struct {
	time.Time
}

func (d *apiDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	// An unparseable date is preserved as zero rather than failing the
	// whole payload; the watermark filter simply never matches it.
	d.Time = time.Time{}
	return nil
}

func (r *apiRecord) toRecord() violations.Record {
	return violations.Record{
		ID:                r.ID,
		CasefileNumber:    r.CasefileNumber,
		Address:           r.Address,
		ParcelID:          r.ParcelID,
		Status:            r.Status,
		InvestigationDate: r.InvestigationDate.Time,
		Description:       r.Description,
		CodeSection:       r.CodeSection,
		SpecInstructions:  r.SpecInstructions,
		Outcome:           r.Outcome,
		Findings:          r.Findings,
	}
}
