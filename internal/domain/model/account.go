package model

// Account is one account held at an institution, unique by the
// aggregator-assigned external identifier. InstitutionExternalID is a lookup
// key; the store resolves it to a row id at write time.
type Account struct {
	ID                    int64
	ExternalID            string
	Name                  string
	Type                  string
	Subtype               string
	Mask                  string
	Currency              string
	InstitutionExternalID string
	UserID                string
}
