// Package core error handling.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. When users encounter errors, they can quote the error code to
// support staff for faster diagnosis.
//
// Error codes are grouped by category:
//
//	DB001-DB099  - database constraints and connectivity
//	MAP001-MAP099 - mapping mutations (duplicates, missing entries)
//	VAL001-VAL099 - SKU and data validation
//	FILE001-FILE099 - uploaded file handling
//	RUN001-RUN099 - run lifecycle (cancel, timeout, capacity)
//	RATE001 - request throttling
//	ERR000 - fallback when no pattern matches
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField marks a row whose required column was absent or blank.
// It is classified per row and never aborts a run.
var ErrMissingField = errors.New("missing required field")

// ErrPersistence marks a storage-layer failure. During a run it aborts the
// remaining rows; the partial run is reported with Failed set.
var ErrPersistence = errors.New("persistence failure")

// ErrRunNotFound is returned when a run ID is unknown or has expired.
var ErrRunNotFound = errors.New("run not found")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. First match wins; specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Mapping Errors (MAP001-MAP003)
	// =========================================================================
	{
		pattern: "mapping already exists",
		msg: UserMessage{
			Message: "A mapping for this SKU already exists",
			Action:  "Remove the existing mapping first or retry with overwrite enabled",
			Code:    "MAP001",
		},
	},
	{
		pattern: "mapping not found",
		msg: UserMessage{
			Message: "No mapping exists for this SKU",
			Action:  "Check the SKU and marketplace and try again",
			Code:    "MAP002",
		},
	},
	{
		pattern: "invalid sku",
		msg: UserMessage{
			Message: "The SKU does not satisfy the validation rules",
			Action:  "Check length, allowed characters, and prefix requirements",
			Code:    "MAP003",
		},
	},

	// =========================================================================
	// Database Constraint Errors (DB001-DB002)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Review your data for duplicate entries",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "persistence failure",
		msg: UserMessage{
			Message: "The storage layer is unavailable",
			Action:  "The run was stopped early. Please try again",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL003)
	// =========================================================================
	{
		pattern: "missing required field",
		msg: UserMessage{
			Message: "A required column is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL001",
		},
	},
	{
		pattern: "failed length rule",
		msg: UserMessage{
			Message: "SKU length is outside the allowed bounds",
			Action:  "Check the configured minimum and maximum SKU length",
			Code:    "VAL002",
		},
	},
	{
		pattern: "failed charset rule",
		msg: UserMessage{
			Message: "SKU contains disallowed characters",
			Action:  "Use only the characters permitted by the validation rules",
			Code:    "VAL002",
		},
	},
	{
		pattern: "failed prefix rule",
		msg: UserMessage{
			Message: "SKU does not start with an accepted prefix",
			Action:  "Check the configured prefix list",
			Code:    "VAL003",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE005)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "header not found",
		msg: UserMessage{
			Message: "Expected columns not found in the file",
			Action:  "Verify column headers match the marketplace export format",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with data rows",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Run Errors (RUN001-RUN005)
	// =========================================================================
	{
		pattern: "run cancelled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN001",
		},
	},
	{
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "System is busy processing other runs",
			Action:  "Please wait a moment and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Run not found",
			Action:  "The run may have expired. Please start a new run",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The run timed out",
			Action:  "Try a smaller file or raise the run timeout",
			Code:    "RUN005",
		},
	},
	{
		pattern: "unknown marketplace",
		msg: UserMessage{
			Message: "Unknown marketplace",
			Action:  "Use one of the supported marketplaces",
			Code:    "RUN006",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be
// shown to users verbatim. Returns false for the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
