package models

// Status is the processing state of a Document. Transitions are forward-only;
// embedding and index upload are tracked by completion fields on the Document
// rather than by additional states.
type Status string

const (
	StatusPendingUpload    Status = "pending_upload"
	StatusUploaded         Status = "uploaded"
	StatusParsing          Status = "parsing"
	StatusProcessed        Status = "processed"
	StatusFailedParsing    Status = "failed_parsing"
	StatusFailedProcessing Status = "failed_processing"
)

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingUpload, StatusUploaded, StatusParsing,
		StatusProcessed, StatusFailedParsing, StatusFailedProcessing:
		return true
	}
	return false
}

// Failed reports whether s is a terminal failure state.
func (s Status) Failed() bool {
	return s == StatusFailedParsing || s == StatusFailedProcessing
}

// CanTransition is the single transition validator. No state is re-entered
// once left, and failure states are reachable only from the stage they
// belong to.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPendingUpload:
		return next == StatusUploaded || next == StatusFailedProcessing
	case StatusUploaded:
		return next == StatusParsing || next == StatusFailedProcessing
	case StatusParsing:
		return next == StatusProcessed || next == StatusFailedParsing || next == StatusFailedProcessing
	default:
		return false
	}
}
