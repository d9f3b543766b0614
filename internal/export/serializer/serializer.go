// Package serializer materializes fetched export sections into the requested
// artifact format.
package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"custodian/internal/category"
	"custodian/internal/export/models"
	"custodian/internal/records"
	dErrors "custodian/pkg/domain-errors"
)

// Section holds the fetched records of one data category, in the order the
// request listed its categories.
type Section struct {
	Category category.Category
	Records  []records.Record
}

// Serialize renders sections into the requested format.
func Serialize(format models.Format, sections []Section) ([]byte, error) {
	switch format {
	case models.FormatJSON:
		return serializeJSON(sections)
	case models.FormatCSV:
		return serializeCSV(sections), nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported export format: %s", format))
	}
}

type jsonRecord struct {
	ID        string         `json:"id"`
	SubjectID string         `json:"subject_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data"`
}

// serializeJSON is a direct structured dump keyed by category.
func serializeJSON(sections []Section) ([]byte, error) {
	document := make(map[string][]jsonRecord, len(sections))
	for _, section := range sections {
		converted := make([]jsonRecord, 0, len(section.Records))
		for _, record := range section.Records {
			converted = append(converted, jsonRecord{
				ID:        record.ID,
				SubjectID: record.SubjectID,
				CreatedAt: record.CreatedAt.UTC(),
				Data:      record.Data,
			})
		}
		document[section.Category.String()] = converted
	}
	return json.MarshalIndent(document, "", "  ")
}

const csvSeparator = ","

// serializeCSV renders one delimited section per category: a category marker
// line, a header row, then one row per record. Values containing the
// separator are sanitized; nested values are flattened to their JSON text.
func serializeCSV(sections []Section) []byte {
	var buf bytes.Buffer
	for i, section := range sections {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString("# category: " + section.Category.String() + "\n")
		writeSection(&buf, section.Records)
	}
	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, recs []records.Record) {
	columns := collectColumns(recs)
	header := append([]string{"id", "subject_id", "created_at"}, columns...)
	buf.WriteString(strings.Join(header, csvSeparator) + "\n")

	for _, record := range recs {
		row := []string{
			sanitize(record.ID),
			sanitize(record.SubjectID),
			record.CreatedAt.UTC().Format(time.RFC3339),
		}
		for _, column := range columns {
			value, ok := record.Data[column]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, sanitize(flatten(value)))
		}
		buf.WriteString(strings.Join(row, csvSeparator) + "\n")
	}
}

// collectColumns is the sorted union of data keys across the section so every
// row has the same shape.
func collectColumns(recs []records.Record) []string {
	seen := make(map[string]bool)
	for _, record := range recs {
		for key := range record.Data {
			seen[key] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}

// flatten renders scalars as plain text and nested structures as their
// compact JSON form.
func flatten(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool, float64, float32, int, int32, int64:
		return fmt.Sprint(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

// sanitize replaces the column separator and newlines inside values so rows
// stay parseable.
func sanitize(value string) string {
	value = strings.ReplaceAll(value, csvSeparator, ";")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
