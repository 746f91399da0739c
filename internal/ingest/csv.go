// Package ingest reads transaction CSV exports and loads them into the store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// Layout names a CSV column layout.
type Layout string

// Supported layouts. LayoutAuto picks one from the column count of each row.
const (
	LayoutAuto      Layout = "auto"
	LayoutProcessed Layout = "processed"
	LayoutRaw       Layout = "raw"
)

// ParseLayout converts a layout name, defaulting to LayoutAuto.
func ParseLayout(name string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(name))) {
	case "", LayoutAuto:
		return LayoutAuto, nil
	case LayoutProcessed:
		return LayoutProcessed, nil
	case LayoutRaw:
		return LayoutRaw, nil
	default:
		return "", common.InvalidArgumentf("unknown CSV layout %q", name)
	}
}

// Processed layout: user_id, timestamp, transaction_type, transaction_method, amount, segment_tag.
const (
	processedNumFields = 6
	processedColUser   = 0
	processedColTime   = 1
	processedColType   = 2
	processedColMethod = 3
	processedColAmount = 4
	processedColTags   = 5
)

// Raw layout: user_id, segment_tag1..3, timestamp, source, transaction_type,
// transaction_method, platform, amount. Source and platform are dropped.
const (
	rawNumFields = 10
	rawColUser   = 0
	rawColTag1   = 1
	rawColTag3   = 3
	rawColTime   = 4
	rawColType   = 6
	rawColMethod = 7
	rawColAmount = 9
)

var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// Diagnostic describes a row that was skipped or repaired.
type Diagnostic struct {
	Message string
	Row     int // 1-based line of the CSV record
	Skipped bool
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("row %d: %s", d.Row, d.Message)
}

// Parse reads every record of r. Rows missing an identifying field are
// skipped, and an unparsable amount is read as 0. Both outcomes are reported
// as diagnostics. A header row is detected by its first cell and ignored.
// Only a malformed CSV stream is an error.
func Parse(r io.Reader, layout Layout) ([]model.Transaction, []Diagnostic, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		txns        []model.Transaction
		diagnostics []Diagnostic
	)
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading CSV: %w", err)
		}
		if row == 1 && isHeader(rec) {
			continue
		}

		txn, notes, err := parseRow(rec, layout)
		for _, n := range notes {
			diagnostics = append(diagnostics, Diagnostic{Row: row, Message: n})
		}
		if err != nil {
			diagnostics = append(diagnostics, Diagnostic{Row: row, Message: err.Error(), Skipped: true})
			continue
		}
		txns = append(txns, txn)
	}
	return txns, diagnostics, nil
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")), "user_id")
}

func parseRow(rec []string, layout Layout) (model.Transaction, []string, error) {
	if layout == LayoutAuto {
		switch len(rec) {
		case processedNumFields:
			layout = LayoutProcessed
		case rawNumFields:
			layout = LayoutRaw
		default:
			return model.Transaction{}, nil, fmt.Errorf("expected %d or %d fields, got %d", processedNumFields, rawNumFields, len(rec))
		}
	}

	var user, ts, typ, method, amount string
	var tags []string
	switch layout {
	case LayoutProcessed:
		if len(rec) != processedNumFields {
			return model.Transaction{}, nil, fmt.Errorf("expected %d fields, got %d", processedNumFields, len(rec))
		}
		user, ts, typ = rec[processedColUser], rec[processedColTime], rec[processedColType]
		method, amount = rec[processedColMethod], rec[processedColAmount]
		tags = model.SplitTags(rec[processedColTags])
	case LayoutRaw:
		if len(rec) != rawNumFields {
			return model.Transaction{}, nil, fmt.Errorf("expected %d fields, got %d", rawNumFields, len(rec))
		}
		user, ts, typ = rec[rawColUser], rec[rawColTime], rec[rawColType]
		method, amount = rec[rawColMethod], rec[rawColAmount]
		for _, tag := range rec[rawColTag1 : rawColTag3+1] {
			if tag = strings.TrimSpace(tag); tag != "" && !strings.EqualFold(tag, "nan") {
				tags = append(tags, tag)
			}
		}
	default:
		return model.Transaction{}, nil, fmt.Errorf("unknown CSV layout %q", layout)
	}

	user = strings.TrimSpace(user)
	method = strings.TrimSpace(method)
	if user == "" {
		return model.Transaction{}, nil, fmt.Errorf("missing user_id")
	}
	if method == "" {
		return model.Transaction{}, nil, fmt.Errorf("missing transaction_method")
	}
	txnType, ok := model.ParseTransactionType(typ)
	if !ok {
		return model.Transaction{}, nil, fmt.Errorf("unknown transaction_type %q", typ)
	}
	timestamp, err := parseTimestamp(ts)
	if err != nil {
		return model.Transaction{}, nil, err
	}
	if layout == LayoutRaw {
		timestamp = time.Date(timestamp.Year(), timestamp.Month(), timestamp.Day(), 0, 0, 0, 0, time.UTC)
	}

	var notes []string
	value, err := parseAmount(amount)
	if err != nil {
		notes = append(notes, fmt.Sprintf("amount %q read as 0", amount))
	}

	return model.Transaction{
		UserID:      user,
		Timestamp:   timestamp,
		Type:        txnType,
		Method:      method,
		Amount:      value,
		SegmentTags: tags,
	}, notes, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: unsupported format", raw)
}

// parseAmount returns 0 with an error for empty or malformed amounts.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
