// seed-admin creates or updates the console admin user and the demo stores.
// Admin users have role = 'A' and no store binding.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cascacheck/cascacheck_backend/config"
	"github.com/cascacheck/cascacheck_backend/models"
	"github.com/cascacheck/cascacheck_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "admin@cascacheck.com"
	adminPassword = "C@scaCheck123"
	adminName     = "Administrador"
)

var demoStores = []string{
	"Açaí Casca Asa Norte",
	"Açaí Casca Asa Sul",
	"Açaí Casca Águas Claras",
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()

	for _, name := range demoStores {
		var store models.Store
		err := db.WithContext(ctx).Model(&models.Store{}).Where("name = ?", name).First(&store).Error
		if err == gorm.ErrRecordNotFound {
			store = models.Store{Name: name, IsActive: utils.NewTrue()}
			if err := db.WithContext(ctx).Create(&store).Error; err != nil {
				fmt.Fprintf(os.Stderr, "failed to create store %q: %v\n", name, err)
				os.Exit(1)
			}
			fmt.Printf("Created store: %q\n", name)
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "failed to lookup store %q: %v\n", name, err)
			os.Exit(1)
		}
	}

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin)\n", adminUsername)
		return
	}

	// Update existing user: ensure password and admin role.
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":  hashedStr,
		"name":      adminName,
		"is_active": utils.NewTrue(),
		"role":      models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin user: username=%q (role=Admin)\n", adminUsername)
}
