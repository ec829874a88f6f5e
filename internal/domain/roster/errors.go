package roster

import "errors"

// Sentinel kinds for workflow errors.
var (
	// ErrPredictionInFlight rejects a predict action while another is
	// outstanding; one prediction at a time, across all rows.
	ErrPredictionInFlight = errors.New("a prediction is already running")

	// ErrRecordBusy rejects a second concurrent mutation on one record.
	ErrRecordBusy = errors.New("record is being modified")
)
