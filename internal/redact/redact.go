// Package redact scrubs sensitive material from strings before they reach
// logs or error responses: credentials, connection strings, SQL fragments
// surfaced by the database driver, row identifiers, file paths, and the
// like. Handlers log redacted error text and return only a generic message
// to the client.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedUUIDPlaceholder       = "[REDACTED_UUID]"
)

// rule pairs a pattern with its replacement. Rules run in order; later
// rules see the output of earlier ones, so credential patterns run before
// the broader structural ones.
type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rules = []rule{
	// Connection strings carry credentials in the authority part.
	{regexp.MustCompile(`(?i)(postgres|mysql|mongodb|db|database|connection)://[^@]+@`), RedactedCredentialPlaceholder},

	// Credentials and tokens.
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},

	// File paths.
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), RedactedPathPlaceholder},

	// Stack trace fragments.
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},

	// Email addresses: contact data lives in restaurant rows and shows up
	// quoted inside driver errors.
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), "[REDACTED_EMAIL]"},

	// SQL statements quoted back by pgx errors. The statement shape stays
	// readable (verb, table, column list); everything that can hold row
	// values goes. SELECTs drop the table too since what follows a failed
	// read's FROM is the predicate, which is exactly what leaks.
	{regexp.MustCompile(`(?i)\bSELECT\b.*\bFROM\b.*`), "SELECT FROM... [SQL_VALUES_REDACTED]"},
	{regexp.MustCompile(`(?i)\b(INSERT\s+INTO\s+[\w."]+\s*(?:\([^)]*\))?\s*VALUES)\b.*`), "$1 [SQL_VALUES_REDACTED]"},
	{regexp.MustCompile(`(?i)\b(UPDATE\s+[\w."]+\s+SET)\b.*`), "$1 [SQL_VALUES_REDACTED]"},
	{regexp.MustCompile(`(?i)\b(DELETE\s+FROM\s+[\w."]+)\s+WHERE\b.*`), "$1 [SQL_WHERE_REDACTED]"},

	// Row identifiers. Every entity in the schema keys on a UUID, so a
	// bare UUID in an error almost always names tenant data.
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), RedactedUUIDPlaceholder},

	// Error shapes that leak schema or filesystem detail.
	{regexp.MustCompile(`(?:at )?line ?\d+`), "[REDACTED_LINE_NUMBER]"},
	{regexp.MustCompile(`(?i)syntax error|syntax problem|parse error`), "[REDACTED_SYNTAX_ERROR]"},
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`), "[REDACTED_HOST]"},
	{regexp.MustCompile(`(?i)(?:no such file|file not found|can't open|cannot open|file error)`), "[REDACTED_FILE_ERROR]"},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
