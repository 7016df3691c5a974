package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/zenorc/zenorc/internal/common"
	"github.com/zenorc/zenorc/internal/model"
	"github.com/zenorc/zenorc/internal/service"
)

// Ledger implements the service.Ledger interface on Google Sheets.
type Ledger struct {
	service  *sheets.Service
	logger   *slog.Logger
	location *time.Location
	config   Config
}

// NewLedger creates a Google Sheets ledger.
func NewLedger(ctx context.Context, config Config, logger *slog.Logger) (*Ledger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	location, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Ledger{
		config:   config,
		service:  srv,
		logger:   logger,
		location: location,
	}, nil
}

// LoadKnownIDs reads the transaction id column and returns the set of ids
// already recorded. Used once at startup to seed in-memory dedup state.
func (l *Ledger) LoadKnownIDs(ctx context.Context) (map[string]struct{}, error) {
	readRange := fmt.Sprintf("%s!A:A", l.config.SheetName)

	resp, err := l.service.Spreadsheets.Values.Get(l.config.SpreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLedgerUnavailable, err)
	}

	ids := knownIDsFromColumn(resp.Values)
	l.logger.Info("seeded dedup state from ledger", "known_ids", len(ids))
	return ids, nil
}

// Record appends one row for an accepted transaction, with the date and
// time rendered in the configured ledger time zone.
func (l *Ledger) Record(ctx context.Context, entry model.LedgerEntry) error {
	writeRange := fmt.Sprintf("%s!A:D", l.config.SheetName)
	values := &sheets.ValueRange{Values: [][]any{rowForEntry(entry, l.location)}}

	retryOpts := service.RetryOptions{
		MaxAttempts:  l.config.RetryAttempts,
		InitialDelay: l.config.RetryDelay,
		Multiplier:   2.0,
	}

	err := common.WithRetry(ctx, func() error {
		_, appendErr := l.service.Spreadsheets.Values.
			Append(l.config.SpreadsheetID, writeRange, values).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return appendErr
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("%w: append %s: %v", common.ErrLedgerUnavailable, entry.ID, err)
	}

	l.logger.Info("ledger row appended", "txn_id", entry.ID)
	return nil
}

// knownIDsFromColumn flattens a single-column value range into an id set,
// skipping empty cells.
func knownIDsFromColumn(values [][]any) map[string]struct{} {
	ids := make(map[string]struct{}, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if id, ok := row[0].(string); ok && id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// rowForEntry renders a ledger row in the fixed [id, amount, date, time]
// column order.
func rowForEntry(entry model.LedgerEntry, loc *time.Location) []any {
	local := entry.When.In(loc)
	return []any{
		entry.ID,
		entry.Amount,
		local.Format("2006-01-02"),
		local.Format("15:04:05"),
	}
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}
