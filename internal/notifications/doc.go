// Package notifications delivers user-facing alerts for connectivity
// problems, forced re-logins, and sync errors via ntfy push messages.
//
// When no topic is configured a no-op implementation is returned, so
// callers never need to guard their notification calls.
package notifications
