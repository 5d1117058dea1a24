// Package database opens the sqlite import ledger.
//
// The ledger records every create call and token exchange an import run makes,
// keyed by run id, so an operator can see afterwards what reached the instance.
// Row access lives in the audit sub-package:
//
//	db, err := database.NewDatabase("./so4t-import.db")
//	repo := audit.NewRepository(db.DB)
//	events, total, err := repo.GetEvents(20, 0)
package database
