package model

// Field names a value pulled out of request text.
type Field string

const (
	FieldCustomerName   Field = "CustomerName"
	FieldIdentifier     Field = "SSN/TIN"
	FieldLoanAmount     Field = "LoanAmount"
	FieldRequestType    Field = "RequestType"
	FieldSubRequestType Field = "SubRequestType"
)

// Fields lists every extracted field in fingerprint order.
var Fields = []Field{
	FieldCustomerName,
	FieldIdentifier,
	FieldLoanAmount,
	FieldRequestType,
	FieldSubRequestType,
}

// ExtractedFields holds the structured values found in a record. A nil
// pointer means the label was not present.
type ExtractedFields struct {
	CustomerName   *string `json:"CustomerName"`
	Identifier     *string `json:"SSN/TIN"`
	LoanAmount     *string `json:"LoanAmount"`
	RequestType    *string `json:"RequestType"`
	SubRequestType *string `json:"SubRequestType"`
}

// Get returns the value of f, or nil when absent.
func (e ExtractedFields) Get(f Field) *string {
	switch f {
	case FieldCustomerName:
		return e.CustomerName
	case FieldIdentifier:
		return e.Identifier
	case FieldLoanAmount:
		return e.LoanAmount
	case FieldRequestType:
		return e.RequestType
	case FieldSubRequestType:
		return e.SubRequestType
	}
	return nil
}

// With returns a copy of e with f set to v.
func (e ExtractedFields) With(f Field, v *string) ExtractedFields {
	switch f {
	case FieldCustomerName:
		e.CustomerName = v
	case FieldIdentifier:
		e.Identifier = v
	case FieldLoanAmount:
		e.LoanAmount = v
	case FieldRequestType:
		e.RequestType = v
	case FieldSubRequestType:
		e.SubRequestType = v
	}
	return e
}

// Tuple is the ordered 5-tuple used for fingerprinting; absent values are "".
func (e ExtractedFields) Tuple() [5]string {
	var t [5]string
	for i, f := range Fields {
		t[i] = Value(e.Get(f))
	}
	return t
}

// Equal compares field-wise, treating absent and absent as equal.
func (e ExtractedFields) Equal(o ExtractedFields) bool {
	for _, f := range Fields {
		a, b := e.Get(f), o.Get(f)
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// Value dereferences an optional string, "" when absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to s.
func Ptr(s string) *string {
	return &s
}
