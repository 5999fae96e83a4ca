package chartsync

import (
	"fmt"
	"time"
)

// Error codes carried by ChartSyncError.
const (
	CodeUpdateFailed = "UPDATE_FAILED"
)

// ChartSyncError is the structured error value emitted on the bus when a
// scheduled refresh fails. The chart stays registered and retries on the
// next tick; callers treat sync-error events as non-blocking.
type ChartSyncError struct {
	ChartID    ChartID   `json:"chartId"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retryCount"`
}

func (e *ChartSyncError) Error() string {
	return fmt.Sprintf("chart %s sync failed (%s, retry %d): %s", e.ChartID, e.Code, e.RetryCount, e.Message)
}
