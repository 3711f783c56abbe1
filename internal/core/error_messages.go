package core

// # Error Codes Reference
//
// User-facing errors carry a short code that users can quote when reporting
// a problem. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the upload exceeds UPLOAD_MAX_FILE_SIZE
//	          Patterns: "file too large"
//	FILE002 - Invalid spreadsheet: bytes are not .xls, .xlsx or CSV, the
//	          workbook is corrupt, or it has no sheets
//	          Patterns: "invalid spreadsheet"
//	FILE004 - No file: the request carried no file
//	          Patterns: "no file provided"
//	FILE005 - Empty file: the upload has zero bytes
//	          Patterns: "empty file"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: every decode slot is taken
//	         Patterns: "too many uploads"
//	UPL004 - Request cancelled
//	         Patterns: "context canceled"
//	UPL005 - Request timeout: decoding took longer than UPLOAD_TIMEOUT
//	         Patterns: "context deadline exceeded"
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - No table: a row action arrived before any file was loaded
//	         Patterns: "no table loaded"
//	TBL002 - Bad row: the row number is not a data row of the table
//	         Patterns: "row out of range", "invalid row"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired: the browser session timed out mid-request
//	         Patterns: "session expired"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. The technical error is in the server log
// under the request ID.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones. "empty file" is
// listed before "invalid spreadsheet" because an empty upload is reported as
// a DecodeError too.

import (
	"fmt"
	"strings"
)

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

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused sheets or rows and try again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Choose a spreadsheet that contains data",
			Code:    "FILE005",
		},
	},
	{
		pattern: "invalid spreadsheet",
		msg: UserMessage{
			Message: "File is not a readable spreadsheet",
			Action:  "Upload an .xls, .xlsx or .csv file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Drop an Excel file on the page or click to choose one",
			Code:    "FILE004",
		},
	},

	// Upload errors
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// Table errors
	{
		pattern: "no table loaded",
		msg: UserMessage{
			Message: "No spreadsheet is loaded yet",
			Action:  "Drop an Excel file on the page first",
			Code:    "TBL001",
		},
	},
	{
		pattern: "row out of range",
		msg: UserMessage{
			Message: "That row is not in the table",
			Action:  "Reload the page and pick a row from the table",
			Code:    "TBL002",
		},
	},
	{
		pattern: "invalid row",
		msg: UserMessage{
			Message: "That row is not in the table",
			Action:  "Reload the page and pick a row from the table",
			Code:    "TBL002",
		},
	},

	// Session errors
	{
		pattern: "session expired",
		msg: UserMessage{
			Message: "Your session expired",
			Action:  "Reload the page and load the file again",
			Code:    "SES001",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000; a nil error maps to the zero UserMessage.
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

// MessageForCode looks a message up by its code. It is used to render
// errors carried across a redirect, where only the code survives.
func MessageForCode(code string) (UserMessage, bool) {
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg, true
		}
	}
	if code == defaultMessage.Code {
		return defaultMessage, true
	}
	return UserMessage{}, false
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
