package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

type googleClient struct {
	service       *sheetsapi.Service
	spreadsheetID string
	appendRange   string
}

// NewGoogleClient builds a Client appending rows to one spreadsheet range
// using service-account credentials.
func NewGoogleClient(ctx context.Context, credentialsFile, spreadsheetID, appendRange string) (Client, error) {
	service, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &googleClient{
		service:       service,
		spreadsheetID: spreadsheetID,
		appendRange:   appendRange,
	}, nil
}

func (c *googleClient) Push(ctx context.Context, entry Entry) error {
	row := []any{
		entry.EntryDate.Format("02.01.2006"),
		entry.SequenceNumber,
		entry.Company,
		entry.Duration,
		entry.WorkMode,
		strings.Join(entry.Workers, ", "),
		entry.Description,
	}

	_, err := c.service.Spreadsheets.Values.
		Append(c.spreadsheetID, c.appendRange, &sheetsapi.ValueRange{
			Values: [][]any{row},
		}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending spreadsheet row: %w", err)
	}

	return nil
}
