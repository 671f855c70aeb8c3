// Package seed creates the default organization and hr_admin user on first
// boot when the users table is empty.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/d9705996/checkin/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminOptions configures the seed organization and admin user.
type AdminOptions struct {
	Email    string
	Password string // if empty, a random password is generated
	OrgName  string
}

// EnsureAdmin creates the seed organization and hr_admin user if no users
// exist. A generated password is printed to stdout exactly once. The function
// is idempotent and safe to call on every startup.
func EnsureAdmin(_ context.Context, db *gorm.DB, opts AdminOptions, log *slog.Logger) error {
	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		log.Info("seed admin already exists")
		return nil
	}

	password := opts.Password
	if password == "" {
		var err error
		password, err = generatePassword()
		if err != nil {
			return fmt.Errorf("generate seed password: %w", err)
		}
		// Print the generated password to stdout exactly once.
		fmt.Printf("[checkin] seed admin password: %s\n", password)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		org := &model.Organization{
			Name: opts.OrgName,
			Slug: "head-office",
		}
		if err := tx.Create(org).Error; err != nil {
			return fmt.Errorf("insert seed organization: %w", err)
		}

		u := &model.User{
			OrganizationID: &org.ID,
			Email:          opts.Email,
			Name:           "Seed Admin",
			PasswordHash:   string(hash),
			Roles:          model.StringSlice{model.RoleHRAdmin},
		}
		if err := tx.Create(u).Error; err != nil {
			return fmt.Errorf("insert seed admin: %w", err)
		}

		log.Info("seed admin created", "email", opts.Email, "organization", org.Name)
		return nil
	})
}

func generatePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
