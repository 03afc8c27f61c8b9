package feeengine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/equinoxcap/investor-portal-backend/internal/model"
)

// CSVResult is the outcome of validating an uploaded fee CSV. Rows holds
// every row that passed validation even when Valid is false, so callers can
// preview the good rows alongside the errors.
type CSVResult struct {
	Valid   bool                       `json:"valid"`
	Headers []string                   `json:"headers"`
	Rows    []model.CSVImportRow       `json:"rows"`
	Errors  []model.CSVValidationError `json:"errors"`
}

// csvRequiredHeaders must all be present or the whole file is rejected
// before any row is examined.
var csvRequiredHeaders = []string{"deal_id", "component"}

// CSVValidator parses and validates legacy fee CSV uploads. A validator is
// single-use; create one per file.
type CSVValidator struct {
	errors []model.CSVValidationError
}

// NewCSVValidator creates an empty validator.
func NewCSVValidator() *CSVValidator {
	return &CSVValidator{}
}

// ValidateCSV parses the raw file content and validates every data row.
// Missing required headers abort validation with a single row-0 error.
// Otherwise each data row is validated independently: a bad row produces an
// error and is dropped, and the remaining rows are still returned.
func (v *CSVValidator) ValidateCSV(content string) CSVResult {
	v.errors = nil

	lines := splitLines(content)
	if len(lines) == 0 {
		v.addError(0, "file", "", "CSV file is empty")
		return CSVResult{Valid: false, Errors: v.errors}
	}

	headers := parseCSVLine(lines[0])
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	for _, required := range csvRequiredHeaders {
		if !containsString(headers, required) {
			v.addError(0, "headers", strings.Join(headers, ","),
				fmt.Sprintf("missing required column: %s", required))
		}
	}
	if len(v.errors) > 0 {
		return CSVResult{Valid: false, Headers: headers, Errors: v.errors}
	}

	column := make(map[string]int, len(headers))
	for i, h := range headers {
		column[h] = i
	}

	var rows []model.CSVImportRow
	for n, line := range lines[1:] {
		rowNum := n + 2 // 1-based, counting the header line
		if strings.TrimSpace(line) == "" {
			continue
		}
		values := parseCSVLine(line)
		if row, ok := v.validateRow(rowNum, column, values); ok {
			rows = append(rows, row)
		}
	}

	return CSVResult{Valid: len(v.errors) == 0, Headers: headers, Rows: rows, Errors: v.errors}
}

// validateRow checks one data row. The first failing field stops the row.
func (v *CSVValidator) validateRow(rowNum int, column map[string]int, values []string) (model.CSVImportRow, bool) {
	cell := func(name string) string {
		i, ok := column[name]
		if !ok || i >= len(values) {
			return ""
		}
		return strings.TrimSpace(values[i])
	}

	var row model.CSVImportRow

	dealID := cell("deal_id")
	id, err := strconv.Atoi(dealID)
	if err != nil || id <= 0 {
		v.addError(rowNum, "deal_id", dealID, "deal_id must be a positive integer")
		return row, false
	}
	row.DealID = id

	if txID := cell("transaction_id"); txID != "" {
		id, err := strconv.Atoi(txID)
		if err != nil || id <= 0 {
			v.addError(rowNum, "transaction_id", txID, "transaction_id must be a positive integer")
			return row, false
		}
		row.TransactionID = &id
	}

	component := model.FeeComponent(strings.ToUpper(cell("component")))
	if !containsComponent(model.FeeComponents, component) {
		v.addError(rowNum, "component", cell("component"),
			fmt.Sprintf("component must be one of: %s", joinComponents(model.FeeComponents)))
		return row, false
	}
	row.Component = component

	if b := cell("basis"); b != "" {
		basis := model.FeeBasis(strings.ToUpper(b))
		if !containsBasis(model.FeeBases, basis) {
			v.addError(rowNum, "basis", b,
				fmt.Sprintf("basis must be one of: %s", joinBases(model.FeeBases)))
			return row, false
		}
		row.Basis = basis
	}

	if p := cell("percent"); p != "" {
		percent, err := strconv.ParseFloat(p, 64)
		if err != nil || percent < 0 || percent > 100 {
			v.addError(rowNum, "percent", p, "percent must be a number between 0 and 100")
			return row, false
		}
		row.Percent = &percent
	}

	if a := cell("amount"); a != "" {
		amount, err := strconv.ParseFloat(a, 64)
		if err != nil || amount < 0 {
			v.addError(rowNum, "amount", a, "amount must be a non-negative number")
			return row, false
		}
		row.Amount = &amount
	}

	if (row.Percent == nil) == (row.Amount == nil) {
		v.addError(rowNum, "percent/amount", "",
			"exactly one of percent or amount must be provided")
		return row, false
	}

	row.Notes = cell("notes")
	row.SourceFile = cell("source_file")
	return row, true
}

func (v *CSVValidator) addError(row int, field, value, msg string) {
	v.errors = append(v.errors, model.CSVValidationError{
		Row: row, Field: field, Value: value, Error: msg,
	})
}

// GenerateTemplate returns a downloadable CSV template with the expected
// headers and two sample rows, one percent-based and one amount-based.
func GenerateTemplate() string {
	lines := []string{
		"deal_id,transaction_id,component,basis,percent,amount,notes,source_file",
		"1001,,MANAGEMENT,GROSS_CAPITAL,2.0,,Annual management fee,legacy_fees.csv",
		"1001,5001,STRUCTURING,,,7500,One-time structuring fee,legacy_fees.csv",
	}
	return strings.Join(lines, "\n") + "\n"
}

// FormatErrors renders validation errors grouped by row, one block per row
// in ascending order, for display in the import preview.
func FormatErrors(errors []model.CSVValidationError) string {
	if len(errors) == 0 {
		return ""
	}

	byRow := make(map[int][]model.CSVValidationError)
	var rows []int
	for _, e := range errors {
		if _, seen := byRow[e.Row]; !seen {
			rows = append(rows, e.Row)
		}
		byRow[e.Row] = append(byRow[e.Row], e)
	}
	sort.Ints(rows)

	var b strings.Builder
	for _, row := range rows {
		if row == 0 {
			b.WriteString("File:\n")
		} else {
			fmt.Fprintf(&b, "Row %d:\n", row)
		}
		for _, e := range byRow[row] {
			fmt.Fprintf(&b, "  - %s: %s\n", e.Field, e.Error)
		}
	}
	return b.String()
}

// headerPatterns maps loose header spellings to the canonical column names,
// used to suggest a mapping when an upload uses non-standard headers.
var headerPatterns = []struct {
	field   string
	pattern *regexp.Regexp
}{
	{"deal_id", regexp.MustCompile(`(?i)^deal[\s_-]*(id|number|no)?$`)},
	{"transaction_id", regexp.MustCompile(`(?i)^(transaction|txn|trans)[\s_-]*(id|number|no)?$`)},
	{"component", regexp.MustCompile(`(?i)^(fee[\s_-]*)?(component|type|kind)$`)},
	{"basis", regexp.MustCompile(`(?i)^(fee[\s_-]*)?basis$`)},
	{"percent", regexp.MustCompile(`(?i)^(fee[\s_-]*)?(percent|percentage|pct|rate)$`)},
	{"amount", regexp.MustCompile(`(?i)^(fee[\s_-]*)?(amount|amt|value)$`)},
	{"notes", regexp.MustCompile(`(?i)^(notes?|comments?|description)$`)},
	{"source_file", regexp.MustCompile(`(?i)^(source|origin)[\s_-]*(file)?$`)},
}

// SuggestMapping proposes canonical column names for arbitrary CSV headers.
// Headers with no plausible match are omitted from the result.
func SuggestMapping(headers []string) map[string]string {
	mapping := make(map[string]string)
	claimed := make(map[string]bool)
	for _, header := range headers {
		trimmed := strings.TrimSpace(header)
		for _, hp := range headerPatterns {
			if claimed[hp.field] {
				continue
			}
			if hp.pattern.MatchString(trimmed) {
				mapping[header] = hp.field
				claimed[hp.field] = true
				break
			}
		}
	}
	return mapping
}

// parseCSVLine splits one CSV line on commas, honoring double quotes. An
// escaped quote inside a quoted cell is written as "".
func parseCSVLine(line string) []string {
	var cells []string
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"' && inQuotes && i+1 < len(line) && line[i+1] == '"':
			current.WriteByte('"')
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			cells = append(cells, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	cells = append(cells, current.String())
	return cells
}

// splitLines splits file content into non-empty lines, tolerating both LF
// and CRLF endings.
func splitLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsComponent(list []model.FeeComponent, c model.FeeComponent) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

func containsBasis(list []model.FeeBasis, b model.FeeBasis) bool {
	for _, v := range list {
		if v == b {
			return true
		}
	}
	return false
}

func joinComponents(list []model.FeeComponent) string {
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func joinBases(list []model.FeeBasis) string {
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
