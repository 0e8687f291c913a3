// Package models contains the GORM models of the local store tables.
// Domain types carry no GORM tags; repositories convert at the boundary.
//
// Tables:
// - ledger.go: mirrored receivables and payables
// - reference.go: financial plan and cost centers
// - sync_run.go: synchronization audit log
// - card_receivable.go: card settlement calendars
package models
