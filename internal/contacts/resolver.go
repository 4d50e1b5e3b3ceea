package contacts

import (
	"context"
	"fmt"

	"flowchat-gateway/internal/models"
	"flowchat-gateway/internal/phone"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolver finds or lazily creates contacts keyed by normalized phone number.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the contact for the given phone, creating one if absent.
//
// Creation is an insert-if-absent on the unique phone index followed by a
// re-read, so concurrent resolutions of the same phone converge on a single
// row instead of racing a check-then-create.
func (r *Resolver) Resolve(ctx context.Context, rawPhone string) (*models.Contact, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	candidate := models.Contact{
		Phone: normalized,
		Name:  placeholderName(normalized),
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			DoNothing: true,
		}).
		Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("contacts: upsert %s: %w", normalized, err)
	}

	var contact models.Contact
	if err := r.db.WithContext(ctx).Where("phone = ?", normalized).First(&contact).Error; err != nil {
		return nil, fmt.Errorf("contacts: load %s: %w", normalized, err)
	}
	return &contact, nil
}

// FindByID returns the contact with the given id, or gorm.ErrRecordNotFound.
func (r *Resolver) FindByID(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func placeholderName(normalized string) string {
	return "WhatsApp " + normalized
}
