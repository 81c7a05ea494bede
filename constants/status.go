package constants

// DocumentStatus is the canonical status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusUploaded   DocumentStatus = "UPLOADED"   // stored, not yet processed
	StatusProcessing DocumentStatus = "PROCESSING" // extraction in progress
	StatusSucceeded  DocumentStatus = "SUCCEEDED"  // terminal: text + fields persisted
	StatusFailed     DocumentStatus = "FAILED"     // terminal: failure reason persisted
)

// Terminal reports whether no transition may leave s except deletion.
func (s DocumentStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal forward move.
// UPLOADED -> PROCESSING -> {SUCCEEDED | FAILED}; terminal states never leave.
func CanTransition(from, to DocumentStatus) bool {
	switch from {
	case StatusUploaded:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusSucceeded || to == StatusFailed
	default:
		return false
	}
}
