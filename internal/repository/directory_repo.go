package repository

import (
	"context"
	"strings"

	"bastportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository reads the user directory. Errors other than a missing row
// are reported as apperror.ErrExternalLookup.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ListByRole(ctx context.Context, role string) ([]model.User, error)
}

type VendorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Vendor, error)
	List(ctx context.Context) ([]model.Vendor, error)
}

type InvoiceTypeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.InvoiceType, error)
	List(ctx context.Context) ([]model.InvoiceType, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := GetDB(ctx, r.db).Where("LOWER(email) = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		return nil, lookupError(err, "user "+email)
	}
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role string) ([]model.User, error) {
	var users []model.User
	if err := GetDB(ctx, r.db).Where("role = ? AND is_active = ?", role, true).Order("email asc").Find(&users).Error; err != nil {
		return nil, lookupError(err, "users with role "+role)
	}
	return users, nil
}

type vendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepository{db: db}
}

func (r *vendorRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := GetDB(ctx, r.db).Where("id = ? AND is_active = ?", id, true).First(&vendor).Error; err != nil {
		return nil, lookupError(err, "vendor "+id.String())
	}
	return &vendor, nil
}

func (r *vendorRepository) List(ctx context.Context) ([]model.Vendor, error) {
	var vendors []model.Vendor
	if err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("nama asc").Find(&vendors).Error; err != nil {
		return nil, lookupError(err, "vendors")
	}
	return vendors, nil
}

type invoiceTypeRepository struct {
	db *gorm.DB
}

func NewInvoiceTypeRepository(db *gorm.DB) InvoiceTypeRepository {
	return &invoiceTypeRepository{db: db}
}

func (r *invoiceTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.InvoiceType, error) {
	var t model.InvoiceType
	if err := GetDB(ctx, r.db).Where("id = ? AND is_active = ?", id, true).First(&t).Error; err != nil {
		return nil, lookupError(err, "invoice type "+id.String())
	}
	return &t, nil
}

func (r *invoiceTypeRepository) List(ctx context.Context) ([]model.InvoiceType, error) {
	var types []model.InvoiceType
	if err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("nama asc").Find(&types).Error; err != nil {
		return nil, lookupError(err, "invoice types")
	}
	return types, nil
}
