package model

// Entity kind keys used in SyncResult count maps.
const (
	KindInstitutions = "institutions"
	KindAccounts     = "accounts"
	KindTransactions = "transactions"
)

// SyncError types. Per-item errors carry the item's external id instead of
// a type.
const (
	SyncErrorTypeNoCredential = "no-credential"
	SyncErrorTypeSync         = "syncError"
)

// SyncError is one entry in a SyncResult's error list. Exactly one of
// AccountID/TransactionID is set for per-item failures; Type is set for
// run-level conditions.
type SyncError struct {
	Type          string `json:"type,omitempty"`
	AccountID     string `json:"accountId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message"`
}

// SyncResult is the stable outcome contract of one sync entry point:
// per-entity-kind success and failure counts plus accumulated errors.
// A sync call never returns a raw error to its caller; failures degrade
// into this shape.
type SyncResult struct {
	Success map[string]int `json:"success"`
	Failed  map[string]int `json:"failed"`
	Errors  []SyncError    `json:"errors"`
}

// NewSyncResult returns a result with zeroed counters for the given kinds,
// so the JSON contract always carries explicit zeros.
func NewSyncResult(kinds ...string) SyncResult {
	res := SyncResult{
		Success: make(map[string]int, len(kinds)),
		Failed:  make(map[string]int, len(kinds)),
		Errors:  []SyncError{},
	}
	for _, k := range kinds {
		res.Success[k] = 0
		res.Failed[k] = 0
	}
	return res
}

// SyncSummary is the combined outcome of a full sync run.
type SyncSummary struct {
	Accounts     SyncResult `json:"accounts"`
	Transactions SyncResult `json:"transactions"`
}
