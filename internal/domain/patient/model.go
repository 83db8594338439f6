package patient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ehr/copilot/pkg/pagination"
)

// Patient is the read-only demographic summary row.
type Patient struct {
	SubjectID       int64   `json:"subject_id" bson:"subject_id"`
	Gender          string  `json:"gender" bson:"gender"`
	AnchorAge       int     `json:"anchor_age" bson:"anchor_age"`
	AnchorYear      int     `json:"anchor_year" bson:"anchor_year"`
	AnchorYearGroup string  `json:"anchor_year_group" bson:"anchor_year_group"`
	// DOD is the date of death as YYYY-MM-DD, nil while alive.
	DOD             *string `json:"dod" bson:"dod,omitempty"`
}

// Row is one clinical sub-record keyed by column or field name. Categories
// have heterogeneous shapes, so rows stay untyped.
type Row = map[string]any

// Page is one page of the patient listing.
type Page = pagination.Response[Patient]

// FullRecord is a patient plus every clinical category. It is built per
// request and never cached.
type FullRecord struct {
	Patient    *Patient
	Categories map[string][]Row
}

// MarshalJSON writes a flat object: "patient" first, then one array per
// registered category in registry order. Empty categories are [].
func (r *FullRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"patient":`)
	p, err := json.Marshal(r.Patient)
	if err != nil {
		return nil, fmt.Errorf("marshal patient: %w", err)
	}
	buf.Write(p)

	for _, cat := range Categories {
		rows := r.Categories[cat.Name]
		if rows == nil {
			rows = []Row{}
		}
		b, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", cat.Name, err)
		}
		buf.WriteString(`,"`)
		buf.WriteString(cat.Name)
		buf.WriteString(`":`)
		buf.Write(b)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
