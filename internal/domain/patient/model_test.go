package patient

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFullRecord_MarshalJSON_KeyOrder(t *testing.T) {
	dod := "2180-09-09"
	record := &FullRecord{
		Patient: &Patient{SubjectID: 42, Gender: "M", DOD: &dod},
		Categories: map[string][]Row{
			"vitalsign":  {{"heartrate": 80}},
			"admissions": {{"hadm_id": 1}},
		},
	}

	b, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(b)

	if !strings.HasPrefix(out, `{"patient":{"subject_id":42,`) {
		t.Errorf("expected patient first, got %s", out[:40])
	}
	last := -1
	for _, cat := range Categories {
		idx := strings.Index(out, `"`+cat.Name+`":`)
		if idx < 0 {
			t.Fatalf("missing key %s", cat.Name)
		}
		if idx < last {
			t.Errorf("key %s out of registry order", cat.Name)
		}
		last = idx
	}
	if !strings.Contains(out, `"dod":"2180-09-09"`) {
		t.Errorf("expected dod in output, got %s", out)
	}
}

func TestFullRecord_MarshalJSON_EmptyCategories(t *testing.T) {
	record := &FullRecord{
		Patient:    &Patient{SubjectID: 42},
		Categories: map[string][]Row{"admissions": {}},
	}

	b, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != len(Categories)+1 {
		t.Errorf("expected %d keys, got %d", len(Categories)+1, len(decoded))
	}
	for _, cat := range Categories {
		if got := string(decoded[cat.Name]); got != "[]" {
			t.Errorf("%s: expected [], got %s", cat.Name, got)
		}
	}
	if strings.Contains(string(b), "null,") {
		t.Errorf("unexpected null in %s", b)
	}
}

func TestPatient_JSONAliveHasNullDOD(t *testing.T) {
	b, _ := json.Marshal(Patient{SubjectID: 1, Gender: "F", AnchorAge: 30, AnchorYear: 2150, AnchorYearGroup: "2008 - 2010"})
	want := `{"subject_id":1,"gender":"F","anchor_age":30,"anchor_year":2150,"anchor_year_group":"2008 - 2010","dod":null}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}
