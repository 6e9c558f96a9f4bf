package store

import (
	"embed"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Schema files live at migration/{driver}/LATEST.sql. Every statement in them
// is idempotent, so Migrate can run on each start.

//go:embed migration
var migrationFS embed.FS

// LatestSchemaFileName is the name of the full schema file of each driver.
const LatestSchemaFileName = "LATEST.sql"

// LatestSchema returns the statements that create the current schema for driver.
func LatestSchema(driver string) ([]string, error) {
	filePath := fmt.Sprintf("migration/%s/%s", driver, LatestSchemaFileName)
	bytes, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema file %s", filePath)
	}
	return SplitSQL(string(bytes)), nil
}

// SplitSQL splits a multi-statement SQL script into individual statements.
// It skips -- and /* */ comments and ignores semicolons inside single quotes.
func SplitSQL(sql string) []string {
	var statements []string
	var current strings.Builder
	inSingleQuote := false
	inComment := false

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(sql, "\n") {
		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch {
			case inComment:
				if ch == '*' && i+1 < len(line) && line[i+1] == '/' {
					inComment = false
					i++
				}
			case inSingleQuote:
				current.WriteByte(ch)
				if ch == '\'' {
					inSingleQuote = false
				}
			case ch == '\'':
				inSingleQuote = true
				current.WriteByte(ch)
			case ch == '-' && i+1 < len(line) && line[i+1] == '-':
				i = len(line)
			case ch == '/' && i+1 < len(line) && line[i+1] == '*':
				inComment = true
				i++
			case ch == ';':
				flush()
			default:
				current.WriteByte(ch)
			}
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
	}
	flush()
	return statements
}
