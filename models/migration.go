package models

import (
	"log"

	"github.com/cascacheck/cascacheck_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Store{},
		&User{},
		&Checklist{}, &ChecklistItem{},
		&ItemRecurrence{},
		&ActionPlan{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
