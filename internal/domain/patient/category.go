package patient

// Category is one clinical table or collection that contributes an array to
// a patient's full record.
type Category struct {
	// Name is the JSON key of the category and the document collection name.
	Name   string
	Schema string
	Table  string
	// Chunked marks document collections packed as
	// {subject_id, events: [...]} documents rather than one row per document.
	Chunked bool
}

// Warehouse schemas.
const (
	SchemaHosp = "mimiciv_hosp"
	SchemaICU  = "mimiciv_icu"
	SchemaNote = "mimiciv_note"
	SchemaED   = "mimiciv_ed"
)

// Categories is the registry consumed by both storage backends. Its order is
// the order of keys in a serialised FullRecord.
var Categories = []Category{
	{Name: "admissions", Schema: SchemaHosp, Table: "admissions"},
	{Name: "diagnoses_icd", Schema: SchemaHosp, Table: "diagnoses_icd"},
	{Name: "drgcodes", Schema: SchemaHosp, Table: "drgcodes"},
	{Name: "emar", Schema: SchemaHosp, Table: "emar"},
	{Name: "emar_detail", Schema: SchemaHosp, Table: "emar_detail"},
	{Name: "hcpcsevents", Schema: SchemaHosp, Table: "hcpcsevents"},
	{Name: "labevents", Schema: SchemaHosp, Table: "labevents", Chunked: true},
	{Name: "microbiologyevents", Schema: SchemaHosp, Table: "microbiologyevents"},
	{Name: "omr", Schema: SchemaHosp, Table: "omr"},
	{Name: "pharmacy", Schema: SchemaHosp, Table: "pharmacy"},
	{Name: "poe", Schema: SchemaHosp, Table: "poe"},
	{Name: "poe_detail", Schema: SchemaHosp, Table: "poe_detail"},
	{Name: "prescriptions", Schema: SchemaHosp, Table: "prescriptions"},
	{Name: "procedures_icd", Schema: SchemaHosp, Table: "procedures_icd"},
	{Name: "services", Schema: SchemaHosp, Table: "services"},
	{Name: "transfers", Schema: SchemaHosp, Table: "transfers"},

	{Name: "chartevents", Schema: SchemaICU, Table: "chartevents", Chunked: true},
	{Name: "datetimeevents", Schema: SchemaICU, Table: "datetimeevents"},
	{Name: "icustays", Schema: SchemaICU, Table: "icustays"},
	{Name: "ingredientevents", Schema: SchemaICU, Table: "ingredientevents"},
	{Name: "inputevents", Schema: SchemaICU, Table: "inputevents"},
	{Name: "outputevents", Schema: SchemaICU, Table: "outputevents"},
	{Name: "procedureevents", Schema: SchemaICU, Table: "procedureevents"},

	{Name: "discharge", Schema: SchemaNote, Table: "discharge"},
	{Name: "discharge_detail", Schema: SchemaNote, Table: "discharge_detail"},
	{Name: "radiology", Schema: SchemaNote, Table: "radiology"},
	{Name: "radiology_detail", Schema: SchemaNote, Table: "radiology_detail"},

	{Name: "edstays", Schema: SchemaED, Table: "edstays"},
	{Name: "diagnosis", Schema: SchemaED, Table: "diagnosis"},
	{Name: "triage", Schema: SchemaED, Table: "triage"},
	{Name: "vitalsign", Schema: SchemaED, Table: "vitalsign", Chunked: true},
}

// PatientsTable and PatientsCollection hold the patient demographics.
const (
	PatientsTable      = "patients"
	PatientsCollection = "patients"
)
