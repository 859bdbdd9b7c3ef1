package deal

// Field names a deal attribute by the key it is sent under
type Field string

const (
	FieldDealID    Field = "dealId"
	FieldDealName  Field = "dealName"
	FieldAmount    Field = "amount"
	FieldCloseDate Field = "closeDate"
	FieldStage     Field = "stage"
	FieldOwnerID   Field = "ownerId"
	FieldCompany   Field = "company"
)

// Fields lists every deal field in canonical order
var Fields = []Field{
	FieldDealID,
	FieldDealName,
	FieldAmount,
	FieldCloseDate,
	FieldStage,
	FieldOwnerID,
	FieldCompany,
}

// RequiredFields must be non-empty before the CPQ tool is opened
var RequiredFields = []Field{FieldDealID, FieldDealName}

// Record represents the deal fields read from a page.
// An empty value means the field was not found.
type Record struct {
	DealID    string `json:"dealId"`
	DealName  string `json:"dealName"`
	Amount    string `json:"amount"`
	CloseDate string `json:"closeDate"`
	Stage     string `json:"stage"`
	OwnerID   string `json:"ownerId"`
	Company   string `json:"company"`
}

func (r *Record) ptr(f Field) *string {
	switch f {
	case FieldDealID:
		return &r.DealID
	case FieldDealName:
		return &r.DealName
	case FieldAmount:
		return &r.Amount
	case FieldCloseDate:
		return &r.CloseDate
	case FieldStage:
		return &r.Stage
	case FieldOwnerID:
		return &r.OwnerID
	case FieldCompany:
		return &r.Company
	}
	return nil
}

// Get returns the value of a field, or "" for an unknown field
func (r Record) Get(f Field) string {
	if p := r.ptr(f); p != nil {
		return *p
	}
	return ""
}

// Set assigns the value of a field; unknown fields are ignored
func (r *Record) Set(f Field, value string) {
	if p := r.ptr(f); p != nil {
		*p = value
	}
}

// Missing returns the named fields that are empty, in the order given
func (r Record) Missing(fields ...Field) []Field {
	var missing []Field
	for _, f := range fields {
		if r.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// IsEmpty reports whether no field was found
func (r Record) IsEmpty() bool {
	return len(r.Missing(Fields...)) == len(Fields)
}
