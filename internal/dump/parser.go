// Package dump tokenizes the raw SQL dump exported from the legacy
// listings database. It is not a SQL parser: it only locates the insert
// statements for the properties table and splits their value lists with a
// quoting-aware character scanner. Malformed rows are counted and skipped,
// never fatal.
package dump

import (
	"bufio"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/andrevros/imovelsync/internal/models"
)

// Column positions in the legacy dump. The layout is fixed; rows shorter
// than minFields are malformed.
const (
	colID = iota
	colDeleted
	colIntentCode
	colTypeCode
	colState
	colCity
	colDistrict
	colZone
	colPrice
	colBedrooms
	colBathrooms
	colSuites
	colAreaTotal
	colAreaUsable
	colTitle
	colShortDescription
	colDescription
	colAltTitle
	colPhotoCount
	colStreet

	minFields = 20
)

var insertRe = regexp.MustCompile(`(?i)insert\s+into\s+properties\s+values\s*`)

// Stats reports what the parser saw in one pass.
type Stats struct {
	Statements int
	Rows       int
	Malformed  int
	Deleted    int
}

// Parser converts raw dump text into legacy property records.
type Parser struct {
	// IncludeDeleted keeps soft-deleted rows in the output. Off by
	// default; the importer has no use for them.
	IncludeDeleted bool
}

func New() *Parser {
	return &Parser{}
}

// Parse scans the whole dump text and returns every well-formed row.
func (p *Parser) Parse(text string) ([]*models.LegacyProperty, *Stats) {
	stats := &Stats{}
	var records []*models.LegacyProperty
	p.parse(text, stats, func(rec *models.LegacyProperty) {
		records = append(records, rec)
	})
	return records, stats
}

// ParseReader streams the dump through the scanner statement by statement
// so multi-gigabyte exports don't need to fit in memory at once. The
// callback is invoked for each well-formed row.
func (p *Parser) ParseReader(r io.Reader, fn func(*models.LegacyProperty)) (*Stats, error) {
	stats := &Stats{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	scanner.Split(scanStatements)
	for scanner.Scan() {
		p.parse(scanner.Text(), stats, fn)
	}
	if err := scanner.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// scanStatements is a bufio.SplitFunc that yields chunks ending in ";".
// Statement boundaries inside quoted strings are rare enough in practice
// that the per-statement parse re-checks quoting anyway.
func scanStatements(data []byte, atEOF bool) (advance int, token []byte, err error) {
	inQuote := false
	escaped := false
	for i, b := range data {
		switch {
		case escaped:
			escaped = false
		case b == '\\':
			escaped = true
		case b == '\'':
			inQuote = !inQuote
		case b == ';' && !inQuote:
			return i + 1, data[:i+1], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (p *Parser) parse(text string, stats *Stats, fn func(*models.LegacyProperty)) {
	for _, loc := range insertRe.FindAllStringIndex(text, -1) {
		stats.Statements++
		for _, row := range splitRows(text[loc[1]:]) {
			fields := splitFields(row)
			if len(fields) < minFields {
				stats.Malformed++
				continue
			}
			rec, ok := buildRecord(fields)
			if !ok {
				stats.Malformed++
				continue
			}
			stats.Rows++
			if rec.Deleted {
				stats.Deleted++
				if !p.IncludeDeleted {
					continue
				}
			}
			fn(rec)
		}
	}
}

// splitRows takes the text following "insert into properties values" and
// returns the raw contents of each parenthesized row. A single character
// scan tracks quote state, backslash escapes and parenthesis depth, so a
// "),(" sequence inside a quoted free-text field never splits a row and
// nested parentheses in trailing JSON-ish fields must balance before a
// row boundary is recognized.
func splitRows(text string) []string {
	var rows []string
	var row strings.Builder
	depth := 0
	inQuote := false
	escaped := false

	for _, r := range text {
		if inQuote {
			row.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '\'':
				inQuote = false
			}
			continue
		}
		switch r {
		case '\'':
			inQuote = true
			row.WriteRune(r)
		case '(':
			depth++
			if depth > 1 {
				row.WriteRune(r)
			}
		case ')':
			depth--
			if depth > 0 {
				row.WriteRune(r)
			} else if depth == 0 {
				rows = append(rows, row.String())
				row.Reset()
			}
		case ';':
			if depth == 0 {
				return rows
			}
			row.WriteRune(r)
		default:
			if depth > 0 {
				row.WriteRune(r)
			}
		}
	}
	return rows
}

// splitFields splits one raw row on unescaped commas outside quotes and
// outside nested parentheses, then unquotes each token.
func splitFields(row string) []string {
	var fields []string
	var field strings.Builder
	depth := 0
	inQuote := false
	escaped := false

	for _, r := range row {
		if inQuote {
			field.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '\'':
				inQuote = false
			}
			continue
		}
		switch r {
		case '\'':
			inQuote = true
			field.WriteRune(r)
		case '(':
			depth++
			field.WriteRune(r)
		case ')':
			depth--
			field.WriteRune(r)
		case ',':
			if depth == 0 {
				fields = append(fields, unquote(field.String()))
				field.Reset()
			} else {
				field.WriteRune(r)
			}
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, unquote(field.String()))
	return fields
}

// unquote strips surrounding single quotes and resolves both backslash
// escapes and SQL-style doubled quotes. NULL (any case) becomes the empty
// string, never the literal "NULL".
func unquote(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || strings.EqualFold(token, "null") {
		return ""
	}
	if len(token) < 2 || token[0] != '\'' || token[len(token)-1] != '\'' {
		return token
	}
	inner := token[1 : len(token)-1]

	var out strings.Builder
	out.Grow(len(inner))
	runes := []rune(inner)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			i++
			switch runes[i] {
			case 'n':
				out.WriteRune('\n')
			case 'r':
				out.WriteRune('\r')
			case '\'', '"', '\\':
				out.WriteRune(runes[i])
			default:
				out.WriteRune('\\')
				out.WriteRune(runes[i])
			}
		case r == '\'' && i+1 < len(runes) && runes[i+1] == '\'':
			out.WriteRune('\'')
			i++
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

func buildRecord(fields []string) (*models.LegacyProperty, bool) {
	id, err := strconv.ParseInt(fields[colID], 10, 64)
	if err != nil {
		log.Printf("dump: row with unparsable id %q skipped", fields[colID])
		return nil, false
	}
	rec := &models.LegacyProperty{
		ID:               id,
		Deleted:          parseBool(fields[colDeleted]),
		IntentCode:       parseInt(fields[colIntentCode]),
		TypeCode:         parseInt(fields[colTypeCode]),
		State:            fields[colState],
		City:             fields[colCity],
		District:         fields[colDistrict],
		Zone:             fields[colZone],
		Price:            parseFloatPtr(fields[colPrice]),
		Bedrooms:         parseFloat(fields[colBedrooms]),
		Bathrooms:        parseFloat(fields[colBathrooms]),
		Suites:           parseFloat(fields[colSuites]),
		AreaTotal:        parseFloatPtr(fields[colAreaTotal]),
		AreaUsable:       parseFloatPtr(fields[colAreaUsable]),
		Title:            fields[colTitle],
		ShortDescription: fields[colShortDescription],
		Description:      fields[colDescription],
		AltTitle:         fields[colAltTitle],
		PhotoCount:       parseInt(fields[colPhotoCount]),
		Street:           fields[colStreet],
	}
	return rec, true
}

func parseBool(s string) bool {
	return s == "1" || strings.EqualFold(s, "true")
}

func parseInt(s string) int {
	return int(parseFloat(s))
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseFloatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
