package model

// InstitutionTag identifies which aggregation provider a credential or
// account belongs to. The set is closed: only the providers below are
// recognized.
type InstitutionTag string

const (
	InstitutionPlaid     InstitutionTag = "plaid"
	InstitutionSimpleFIN InstitutionTag = "simplefin"
)

// Valid reports whether the tag names a known provider.
func (t InstitutionTag) Valid() bool {
	switch t {
	case InstitutionPlaid, InstitutionSimpleFIN:
		return true
	}
	return false
}

func (t InstitutionTag) String() string {
	return string(t)
}

// Institution is a financial institution as reported by the provider.
// ExternalID is the provider-assigned identifier and is the upsert key.
type Institution struct {
	ID         int64
	ExternalID string
	Name       string
	URL        string
}
