package models

import (
	"bitbucket.org/storyfount/finance_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&MonthlyFinancialRecord{},
		&LedgerSubscription{},
		&LedgerAllocation{},
		&WriterEarnings{},
		&SyncRunLog{},
	)
	if err != nil {
		panic(err)
	}
}
