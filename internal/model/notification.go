// Package model defines the core domain models used throughout the application.
package model

// Notification is one raw candidate message read from the inbox. It exists
// only for the duration of a single ingestion pass.
type Notification struct {
	// SourceRef is the opaque per-source handle for the underlying message,
	// e.g. an IMAP UID rendered as a string.
	SourceRef string
	Subject   string
	Body      string
}
