package entity

import "fmt"

// Status is the lifecycle state of a transaction. It moves exactly once from
// StatusProcessing to StatusProcessed and never reverts.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
)

// String returns the single canonical wire form of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(value string) (Status, error) {
	switch value {
	case string(StatusProcessing):
		return StatusProcessing, nil
	case string(StatusProcessed):
		return StatusProcessed, nil
	default:
		return "", fmt.Errorf("invalid transaction status: %s", value)
	}
}
