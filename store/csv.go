package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"oss.nandlabs.io/slumber/errs"
	"oss.nandlabs.io/slumber/task"
)

// csvColumns is the fixed column order of the bundled FileStore format.
var csvColumns = []string{
	"id", "queue", "run_at", "initial_run_at", "expire_at",
	"attempts", "last_fail_at", "last_error", "data",
}

// encodeRecords renders records as the FileStore's on-disk representation: a
// header row followed by one row per record, every field quoted regardless
// of content.
func encodeRecords(records []*task.Record) []byte {
	var buf bytes.Buffer
	buf.WriteString(encodeRow(csvColumns))
	buf.WriteByte('\n')
	for _, r := range records {
		buf.WriteString(encodeRow(recordFields(r)))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func encodeRow(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = quoteField(f)
	}
	return strings.Join(quoted, ",")
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func recordFields(r *task.Record) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Queue,
		task.FormatTime(r.RunAt),
		task.FormatTime(r.InitialRunAt),
		task.FormatTime(r.ExpireAt),
		strconv.Itoa(r.Attempts),
		task.FormatTime(r.LastFailAt),
		r.LastError,
		r.Data,
	}
}

// decodeRecords parses the FileStore's on-disk representation. Blank lines
// are ignored (encoding/csv does this natively); a file with only a header,
// or no content at all, decodes to an empty, non-nil-error result.
func decodeRecords(content []byte) ([]*task.Record, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode file store: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	records := make([]*task.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(csvColumns) {
			return nil, fmt.Errorf("decode file store: row has %d fields, want %d: %w", len(row), len(csvColumns), errs.ErrMalformedStore)
		}
		rec, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode file store: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRow(row []string) (*task.Record, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return nil, err
	}
	runAt, err := task.ParseTime(row[2])
	if err != nil {
		return nil, err
	}
	initialRunAt, err := task.ParseTime(row[3])
	if err != nil {
		return nil, err
	}
	expireAt, err := task.ParseTime(row[4])
	if err != nil {
		return nil, err
	}
	attempts, err := strconv.Atoi(row[5])
	if err != nil {
		return nil, err
	}
	lastFailAt, err := task.ParseTime(row[6])
	if err != nil {
		return nil, err
	}

	return &task.Record{
		ID:           id,
		Queue:        row[1],
		RunAt:        runAt,
		InitialRunAt: initialRunAt,
		ExpireAt:     expireAt,
		Attempts:     attempts,
		LastFailAt:   lastFailAt,
		LastError:    row[7],
		Data:         row[8],
	}, nil
}
