package errors

import (
	"fmt"
)

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// ScanRootMissing is returned when the root of a tree that should be scanned
// doesn't exist. It aborts the whole pass, unlike errors on individual files.
type ScanRootMissing struct {
	Path string
}

func (err ScanRootMissing) Error() string {
	return fmt.Sprintf("scan root %q does not exist", err.Path)
}

// FriendlyMessage implements friendlyError.
func (err ScanRootMissing) FriendlyMessage() string {
	return fmt.Sprintf("The folder %q does not exist.\n"+
		"Make sure both the source and replica folders are created "+
		"before starting the synchronizer.", err.Path)
}

// NotADirectory is returned when a tree root exists but isn't a directory.
type NotADirectory struct {
	Path string
}

func (err NotADirectory) Error() string {
	return fmt.Sprintf("%q is not a directory", err.Path)
}
