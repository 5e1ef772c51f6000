package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Patterns for pulling structure out of PgError.Detail.
var (
	// "Key (field)=(value) already exists."
	uniqueKeyPattern = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is still referenced from table ..." means a parent row is being
	// deleted out from under its children.
	stillReferencedPattern = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// "... is not present in table ..." means a child row points at a parent
	// that does not exist.
	missingParentPattern = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError translates database failures into AppError values the HTTP layer
// can render: pgx.ErrNoRows becomes not_found, unique violations become
// conflicts, foreign key violations carry a message naming the blocking
// domain object, and check or NOT NULL violations become validation errors.
// Context expiry maps to timeout and canceled codes. Anything unrecognized
// passes through unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out. Please try again.",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "Request was canceled.",
			Cause:   err,
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{
			Code:    ErrCodeNotFound,
			Message: "Resource not found",
			Cause:   err,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "This value already exists. Please choose a different one.",
			Field:   uniqueViolationField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{
			Code:    ErrCodeForeignKey,
			Message: foreignKeyMessage(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.CheckViolation:
		return mapCheckViolation(pgErr)
	case pgerrcode.NotNullViolation:
		return mapNotNullViolation(pgErr)
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

// uniqueViolationField resolves the conflicting column: column metadata
// first, then the Detail message, then the constraint name. Multi-column
// conflicts come back joined the way Postgres reports them ("a, b").
func uniqueViolationField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := uniqueKeyPattern.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return inferFieldFromConstraint(pgErr.ConstraintName)
}

// foreignKeyMessage builds a user-facing description of why the write was
// rejected, preferring the Detail message, then table metadata, then the
// constraint name.
func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := stillReferencedPattern.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot delete because this item is in use by " + mapTableToDomain(m[1]) + "."
	}
	if m := missingParentPattern.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot complete operation because the referenced " + mapTableToDomain(m[1]) + " does not exist."
	}
	if pgErr.TableName != "" {
		return "Cannot complete operation because this item is in use by " + mapTableToDomain(pgErr.TableName) + "."
	}
	return inferForeignKeyMessage(pgErr.ConstraintName)
}

func mapNotNullViolation(pgErr *pgconn.PgError) error {
	if pgErr.ColumnName != "" {
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "This field is required.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	}
	return &AppError{
		Code:    ErrCodeValidation,
		Message: "Required field is missing. Please check your input.",
		Cause:   pgErr,
	}
}

func mapCheckViolation(pgErr *pgconn.PgError) error {
	if pgErr.ColumnName != "" {
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "This field has an invalid value.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	}
	return &AppError{
		Code:    ErrCodeValidation,
		Message: "Invalid data. Please check your input.",
		Cause:   pgErr,
	}
}

// inferFieldFromConstraint guesses the field behind a single-column
// constraint named "table_field_key", "table_field_unique", or
// "table_field_idx". Returns the empty string when the name has a different
// shape: multi-column and expression indexes do not name a single field.
func inferFieldFromConstraint(constraintName string) string {
	parts := strings.Split(constraintName, "_")
	if len(parts) != 3 {
		return ""
	}
	// Expression indexes put the function where the field would be, as in
	// "table_lower_key".
	if isFunctionName(parts[1]) {
		return ""
	}
	return parts[1]
}

// tableDomainNames maps table names to the labels users see in conflict and
// foreign key messages.
var tableDomainNames = map[string]string{
	"profiles":         "Profile",
	"businesses":       "Business",
	"categories":       "Category",
	"events":           "Event",
	"event_categories": "Event",
	"rsvps":            "RSVP",
	"plans":            "Plan",
	"subscriptions":    "Subscription",
	"stripe_customers": "Billing Customer",
	"form_templates":   "Form",
	"form_fields":      "Form",
	"form_submissions": "Form Submission",
	"jobs":             "Job",
}

func mapTableToDomain(tableName string) string {
	tableName = strings.ToLower(strings.TrimSpace(tableName))
	if name, ok := tableDomainNames[tableName]; ok {
		return name
	}
	// Unknown tables read as title-cased words.
	return titleCase(strings.ReplaceAll(tableName, "_", " "))
}

func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		if c := word[0]; 'a' <= c && c <= 'z' {
			words[i] = string(c-'a'+'A') + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// inferForeignKeyMessage falls back to substring matching on the constraint
// name when Postgres supplied no Detail or table metadata. Order matters:
// names like "event_categories_category_id_fkey" and
// "form_templates_business_id_fkey" contain more than one domain word, and
// the more specific one has to win.
func inferForeignKeyMessage(constraintName string) string {
	constraintName = strings.ToLower(constraintName)

	switch {
	case strings.Contains(constraintName, "categor"):
		return "Cannot delete category because it is in use by an Event."
	case strings.Contains(constraintName, "plan"):
		return "Cannot delete plan because it is in use by a Subscription."
	case strings.Contains(constraintName, "event"):
		return "Cannot delete because it is in use by an Event."
	case strings.Contains(constraintName, "form"):
		return "Cannot delete because it is in use by a Form."
	case strings.Contains(constraintName, "business"):
		return "Cannot delete because it is in use by a Business."
	default:
		return "Cannot complete operation because this item is in use."
	}
}

// expressionFuncNames lists SQL functions that commonly appear in expression
// index names where a field name would otherwise be.
var expressionFuncNames = map[string]struct{}{
	"lower":  {},
	"upper":  {},
	"trim":   {},
	"ltrim":  {},
	"rtrim":  {},
	"md5":    {},
	"sha1":   {},
	"sha256": {},
	"encode": {},
	"decode": {},
}

func isFunctionName(s string) bool {
	_, ok := expressionFuncNames[strings.ToLower(s)]
	return ok
}
