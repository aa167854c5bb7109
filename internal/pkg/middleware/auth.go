package middleware

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"github.com/ManuelReschke/StripeHooks/app/repository"
)

// AdminUser is the only basic auth user name accepted by the admin API.
const AdminUser = "admin"

const minPasswordLength = 16

var (
	ErrWrongPassword = errors.New("current password incorrect")
	ErrWeakPassword  = errors.New("password too weak")
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

// RequireAdmin authenticates the admin API with HTTP basic auth against the
// bcrypt hash in the settings store. Without a stored hash every request is
// rejected.
func RequireAdmin(settings repository.SettingRepository) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm: "StripeHooks",
		Authorizer: func(user, pass string) bool {
			if user != AdminUser {
				return false
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ok, err := VerifyAdminPassword(ctx, settings, pass)
			if err != nil {
				log.Errorf("[Auth] Loading admin password hash failed: %v", err)
			}
			return ok
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `basic realm="StripeHooks"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "admin credentials required",
			})
		},
	})
}

// VerifyAdminPassword reports whether password matches the stored hash.
func VerifyAdminPassword(ctx context.Context, settings repository.SettingRepository, password string) (bool, error) {
	hash, err := settings.GetValue(ctx, models.SettingAdminPasswordHash)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(hash) == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// EnsureAdminPassword stores a hash of password on first start. An existing
// hash is never overwritten; change it through ChangeAdminPassword.
func EnsureAdminPassword(ctx context.Context, settings repository.SettingRepository, password string) (bool, error) {
	hash, err := settings.GetValue(ctx, models.SettingAdminPasswordHash)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(hash) != "" {
		return false, nil
	}
	if password == "" {
		log.Warn("[Auth] ADMIN_PASSWORD not set and no admin password stored, admin API is locked")
		return false, nil
	}
	if err := storeAdminPassword(ctx, settings, password); err != nil {
		return false, err
	}
	log.Info("[Auth] Admin password initialised from ADMIN_PASSWORD")
	return true, nil
}

// ChangeAdminPassword replaces the stored hash after checking the current
// password and the strength of the new one.
func ChangeAdminPassword(ctx context.Context, settings repository.SettingRepository, current, next string) error {
	ok, err := VerifyAdminPassword(ctx, settings, current)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongPassword
	}
	next = strings.TrimSpace(next)
	if err := ValidatePasswordStrength(next); err != nil {
		return err
	}
	return storeAdminPassword(ctx, settings, next)
}

// ValidatePasswordStrength requires 16 characters with upper and lower case
// letters, a digit and a special character.
func ValidatePasswordStrength(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minPasswordLength)
	case !upperRe.MatchString(password):
		return fmt.Errorf("%w: must contain an uppercase letter", ErrWeakPassword)
	case !lowerRe.MatchString(password):
		return fmt.Errorf("%w: must contain a lowercase letter", ErrWeakPassword)
	case !digitRe.MatchString(password):
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	case !specialRe.MatchString(password):
		return fmt.Errorf("%w: must contain a special character", ErrWeakPassword)
	}
	return nil
}

func storeAdminPassword(ctx context.Context, settings repository.SettingRepository, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	return settings.SetValue(ctx, models.SettingAdminPasswordHash, string(hash))
}
