// Package repository provides repository interfaces and GORM implementations
// for the annotation database.
//
// Every constructor takes a *gorm.DB. Pass the transaction handle when the
// repository is used inside db.Transaction so that all reads and writes of a
// request share one transaction.
//
// Lookups that miss return the sentinel errors declared in errors.go, never
// gorm.ErrRecordNotFound.
package repository
