package sheets

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/api/googleapi"
)

// Entry is one spreadsheet row mirroring a journal entry.
type Entry struct {
	EntryDate      time.Time
	SequenceNumber int64
	Company        string
	Duration       string
	WorkMode       string
	Workers        []string
	Description    string
}

// Client replicates journal entries into the spreadsheet of record.
type Client interface {
	Push(ctx context.Context, entry Entry) error
}

// isRetryable reports whether a push failure is worth repeating: rate
// limits, upstream 5xx and transport-level errors are; everything else
// (bad credentials, malformed range) is not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
