package ui

import "time"

// FormatDate renders a date cell, "-" when absent.
func FormatDate(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.Format("2006-01-02")
}

// FormatTimestamp renders a full timestamp for detail views.
func FormatTimestamp(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04")
}
