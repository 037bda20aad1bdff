package parser

import (
	"fmt"
	"strings"

	"log-onboarding-engine/internal/fields"
	"log-onboarding-engine/internal/regex"
)

const csvConfidence = 0.9

// CSVParser handles comma-separated samples with a header line
type CSVParser struct {
	delimiter byte
}

// NewCSVParser creates a new CSV parser
func NewCSVParser() LogParser {
	return &CSVParser{delimiter: ','}
}

// CanParse requires a header line containing a comma and at least one data line
func (p *CSVParser) CanParse(sample string) bool {
	lines := sampleLines(sample)
	return len(lines) >= 2 && strings.IndexByte(lines[0], p.delimiter) >= 0
}

// Parse emits one field per header column with the value from the first data row.
// Malformed lines are cut short and reported as warnings.
func (p *CSVParser) Parse(sample string) (*Extraction, error) {
	lines := sampleLines(sample)
	if len(lines) < 2 {
		return nil, errNotParsable(FormatCSV)
	}

	ext := &Extraction{}
	header, err := SplitDelimited(lines[0], p.delimiter)
	if err != nil {
		ext.Warnings = append(ext.Warnings, fmt.Sprintf("header: %v", err))
	}
	row, err := SplitDelimited(lines[1], p.delimiter)
	if err != nil {
		ext.Warnings = append(ext.Warnings, fmt.Sprintf("line 2: %v", err))
	}

	names := p.columnNames(header)
	for i, name := range names {
		value := ""
		if i < len(row) {
			value = row[i].Value
		}
		ext.Fields = append(ext.Fields, fields.New(name, value, csvConfidence, fields.SourceAutoDetect, false))
	}
	return ext, nil
}

// Synthesize emits `^(?<a>[^,]*),\s*(?<b>[^,]*)...$` over the header columns.
// Columns without a record become non-capturing so positions still line up, and
// cells quoted in the sample keep their quotes outside the group.
func (p *CSVParser) Synthesize(sample string, records []fields.FieldRecord) *regex.Pattern {
	pattern := regex.NewPattern()
	lines := sampleLines(sample)
	if len(lines) < 2 || len(records) == 0 {
		return pattern
	}

	header, _ := SplitDelimited(lines[0], p.delimiter)
	row, _ := SplitDelimited(lines[1], p.delimiter)
	byName := make(map[string]fields.FieldRecord, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	pattern.Literal("^")
	for i, name := range p.columnNames(header) {
		if i > 0 {
			pattern.Literal(`,\s*`)
		}
		quoted := i < len(row) && row[i].Quoted

		r, wanted := byName[name]
		fragment := `[^,]*`
		if wanted {
			fragment = regex.Fragment(r.Type, regex.ContextCSV)
		}
		if quoted {
			fragment = `[^"]*`
			pattern.Literal(`"`)
		}
		if wanted {
			pattern.Capture(name, fragment)
		} else {
			pattern.Literal("(?:" + fragment + ")")
		}
		if quoted {
			pattern.Literal(`"`)
		}
	}
	pattern.Literal("$")
	return pattern
}

// GetFormat returns the format name
func (p *CSVParser) GetFormat() Format {
	return FormatCSV
}

// columnNames trims header cells, names blank ones column_N and makes every name a
// valid group name not used by an earlier column
func (p *CSVParser) columnNames(header []Cell) []string {
	names := make([]string, len(header))
	namer := regex.NewNamer()
	for i, cell := range header {
		name := strings.TrimSpace(cell.Value)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		names[i] = namer.Unique(name)
	}
	return names
}
