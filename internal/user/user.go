// Package user manages Partline accounts and their credentials.
package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/pagination"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("user: not found")
	ErrDuplicateEmail = errors.New("user: email already registered")
	ErrInvalid        = errors.New("user: invalid input")
)

// MinPasswordLength is the shortest password Create and Update accept.
const MinPasswordLength = 6

// CreateOpts holds parameters for creating a user.
type CreateOpts struct {
	Name     string
	Email    string
	Password string
	Role     models.Role // defaults to OPERATOR
}

// UpdateOpts holds editable fields. Nil leaves the field unchanged.
type UpdateOpts struct {
	Name     *string
	Email    *string
	Password *string
	Role     *models.Role
	Active   *bool
}

// ListFilters holds optional filters for listing users.
type ListFilters struct {
	Role   models.Role
	Active *bool
	Skip   int
	Limit  int
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("user: hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether password matches u's stored hash.
func CheckPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Create registers an active user.
func Create(db *gorm.DB, opts CreateOpts) (*models.User, error) {
	opts.Name = strings.TrimSpace(opts.Name)
	opts.Email = normalizeEmail(opts.Email)
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if opts.Email == "" || !strings.Contains(opts.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalid)
	}
	if len(opts.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, MinPasswordLength)
	}
	if opts.Role == "" {
		opts.Role = models.RoleOperator
	}
	if !opts.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q", ErrInvalid, opts.Role)
	}

	if err := ensureEmailFree(db, opts.Email, 0); err != nil {
		return nil, err
	}

	hash, err := HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}
	u := models.User{
		Name:         opts.Name,
		Email:        opts.Email,
		PasswordHash: hash,
		Role:         opts.Role,
		Active:       true,
	}
	if err := db.Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, opts.Email)
		}
		return nil, fmt.Errorf("user: create %s: %w", opts.Email, err)
	}
	return &u, nil
}

func ensureEmailFree(db *gorm.DB, email string, exceptID uint) error {
	var count int64
	q := db.Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("user: check email %s: %w", email, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
	}
	return nil
}

// Get retrieves a user by ID.
func Get(db *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := db.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("user: get %d: %w", id, err)
	}
	return &u, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func GetByEmail(db *gorm.DB, email string) (*models.User, error) {
	email = normalizeEmail(email)
	var u models.User
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
		}
		return nil, fmt.Errorf("user: get %s: %w", email, err)
	}
	return &u, nil
}

// List returns users matching filters, ordered by ID.
func List(db *gorm.DB, filters ListFilters) ([]models.User, error) {
	q := db.Model(&models.User{})
	if filters.Role != "" {
		q = q.Where("role = ?", filters.Role)
	}
	if filters.Active != nil {
		q = q.Where("active = ?", *filters.Active)
	}

	users := []models.User{}
	if err := q.Scopes(pagination.Scope(filters.Skip, filters.Limit)).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user: list: %w", err)
	}
	return users, nil
}

// Update applies opts to user id and returns the result.
func Update(db *gorm.DB, id uint, opts UpdateOpts) (*models.User, error) {
	if _, err := Get(db, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
		}
		updates["name"] = name
	}
	if opts.Email != nil {
		email := normalizeEmail(*opts.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalid)
		}
		if err := ensureEmailFree(db, email, id); err != nil {
			return nil, err
		}
		updates["email"] = email
	}
	if opts.Password != nil {
		if len(*opts.Password) < MinPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, MinPasswordLength)
		}
		hash, err := HashPassword(*opts.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}
	if opts.Role != nil {
		if !opts.Role.Valid() {
			return nil, fmt.Errorf("%w: role %q", ErrInvalid, *opts.Role)
		}
		updates["role"] = *opts.Role
	}
	if opts.Active != nil {
		updates["active"] = *opts.Active
	}

	if len(updates) > 0 {
		if err := db.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("user: update %d: %w", id, err)
		}
	}
	return Get(db, id)
}

// Deactivate clears the active flag. Users are never deleted because trace
// events keep referring to them.
func Deactivate(db *gorm.DB, id uint) (*models.User, error) {
	inactive := false
	return Update(db, id, UpdateOpts{Active: &inactive})
}
