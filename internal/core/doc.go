// Package core holds the domain of sheetmark: a spreadsheet's first sheet as
// a Table, the Used marker on its rows, and CSV export.
//
// # Tables
//
// A [Table] is a header [Row] followed by data rows, each an ordered list of
// [Cell] values (text, number or empty). Tables are values. Every change
// produces a new Table in which only the touched rows are new slices, so a
// failed or no-op operation can never leave a half-edited table behind.
//
// # Ingestion
//
// [SpreadsheetDecoder] sniffs uploaded bytes and reads the first sheet of a
// legacy .xls workbook, an .xlsx workbook, or CSV text (so exports can be
// loaded again). Anything else is a [DecodeError].
//
// # Annotation
//
// An [Annotator] adds and removes the Used marker on 1-based data rows. Two
// layouts exist, chosen by [Policy]:
//
//   - [PolicyShared] keeps one Status column and toggles Used inside it.
//   - [PolicyAppend] appends a Status/Used pair on every add and removes only
//     the row's Used cell, leaving the header as it was.
//
// # Sessions
//
// [Service] keeps one [Workspace] per browser session in a [SessionStore].
// The workspace serializes writers and bumps a version on every change.
// Idle sessions are dropped by [Service.StartSessionSweeper].
//
// # Activity
//
// Successful ingests, annotations, exports and clears are written to an
// [AuditSink], either [MemoryAuditSink] or [PostgresAuditSink].
package core
