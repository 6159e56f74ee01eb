// Package audit records per-firing delivery outcomes.
//
// Drivers:
//   - "file":   append-only JSON Lines (default)
//   - "sqlite": SQLite database file
//   - "mongo":  MongoDB collection (email_automation_db.email_logs by default)
//   - "none":   disabled
package audit
