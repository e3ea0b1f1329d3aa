// Package core provides fundamental utilities for the upiscan pipeline.
// This file contains option functions for customizing activity log entries.
package core

import (
	"github.com/google/uuid"
	"github.com/tfkr-ae/upiscan/domain"
)

// LogWithContext is an option to add a context map to a log entry.
func LogWithContext(context map[string]any) func(log *domain.Log) error {
	return func(log *domain.Log) error {
		log.Context = context
		return nil
	}
}

// LogWithScanID is an option to associate a log entry with a scan event ID.
func LogWithScanID(id uuid.UUID) func(log *domain.Log) error {
	return func(log *domain.Log) error {
		log.ScanID = &id
		return nil
	}
}

// LogWithApplicationID is an option to associate a log entry with a catalog application ID.
func LogWithApplicationID(id string) func(log *domain.Log) error {
	return func(log *domain.Log) error {
		log.ApplicationID = id
		return nil
	}
}
