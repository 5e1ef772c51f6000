//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

// JobListOptions groups parameters for listing jobs with optional filters (admin view).
type JobListOptions struct {
	Status     *JobStatus // Optional filter by status (pending, running, completed, failed)
	Type       *JobType   // Optional filter by type (email, reminders, rollup)
	EventID    *string    // Optional filter by event_id
	BusinessID *string    // Optional filter by business_id
	SortBy     string     // Sort field: "created_at", "status", "type" (default: "created_at")
	SortOrder  string     // Sort order: "asc", "desc" (default: "desc")
	Limit      int        // Pagination limit
	Offset     int        // Pagination offset
}
