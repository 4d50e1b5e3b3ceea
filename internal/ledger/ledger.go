package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"flowchat-gateway/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the referenced message id does not exist.
var ErrNotFound = errors.New("ledger: message not found")

// Ledger owns message records and the canonical status state machine.
type Ledger struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, logger: logger.With("component", "ledger")}
}

// CreateParams describes a message to insert.
type CreateParams struct {
	Direction         models.Direction
	Content           string
	Type              models.MessageType
	ContactID         string
	SenderID          string
	Status            models.Status
	ProviderMessageID string
	Metadata          map[string]interface{}
}

// Create inserts a new message. Outbound messages default to pending when no
// status is given; the initial status is the first history entry.
func (l *Ledger) Create(ctx context.Context, p CreateParams) (*models.Message, error) {
	status := p.Status
	if status == "" {
		status = models.StatusPending
	}

	metadata := datatypes.JSONMap{}
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	msg := models.Message{
		Content:           p.Content,
		Type:              p.Type,
		Direction:         p.Direction,
		Status:            status,
		ContactID:         p.ContactID,
		SenderID:          p.SenderID,
		ProviderMessageID: p.ProviderMessageID,
		StatusHistory: models.StatusHistory{
			{Status: status, Timestamp: time.Now().UTC()},
		},
		Metadata: metadata,
	}

	if err := l.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("ledger: create message: %w", err)
	}
	return &msg, nil
}

// UpdateStatus records a status observation for the message and merges extra
// metadata into the existing metadata map.
//
// Every observation lands in the status history. The current status only
// moves forward through the state machine (or to failed from any live
// state); duplicates, regressions, and the unknown sentinel leave it
// untouched, with regressions logged as anomalies.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, status models.Status, extra map[string]interface{}) (*models.Message, error) {
	var msg models.Message
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: load message %s: %w", id, err)
	}

	if msg.Metadata == nil {
		msg.Metadata = datatypes.JSONMap{}
	}
	for k, v := range extra {
		msg.Metadata[k] = v
	}

	msg.StatusHistory = append(msg.StatusHistory, models.StatusEntry{
		Status:    status,
		Timestamp: time.Now().UTC(),
	})

	switch {
	case status == models.StatusUnknown:
		l.logger.Warn("unrecognized provider status recorded",
			"message_id", msg.ID, "current_status", msg.Status)
	case canTransition(msg.Status, status):
		msg.Status = status
	case msg.Status == status:
		// Replayed callback; history keeps the duplicate.
	default:
		l.logger.Warn("status anomaly: transition not applied",
			"message_id", msg.ID, "current_status", msg.Status, "reported_status", status)
	}

	updates := map[string]interface{}{
		"status":         msg.Status,
		"status_history": msg.StatusHistory,
		"metadata":       msg.Metadata,
		"updated_at":     time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ledger: update message %s: %w", id, err)
	}
	return &msg, nil
}

// SetProviderMessageID attaches the provider-assigned identifier used to join
// later status callbacks. It is immutable once set.
func (l *Ledger) SetProviderMessageID(ctx context.Context, id, providerID string) error {
	var msg models.Message
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ledger: load message %s: %w", id, err)
	}

	if msg.ProviderMessageID != "" {
		if msg.ProviderMessageID != providerID {
			return fmt.Errorf("ledger: provider message id already set on %s", id)
		}
		return nil
	}

	err := l.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Update("provider_message_id", providerID).Error
	if err != nil {
		return fmt.Errorf("ledger: set provider message id on %s: %w", id, err)
	}
	return nil
}

// FindByID returns the message with the given id.
func (l *Ledger) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := l.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: load message %s: %w", id, err)
	}
	return &msg, nil
}

// FindByProviderMessageID joins an inbound status callback to the message it
// refers to. A missing row is reported via the boolean, not an error.
func (l *Ledger) FindByProviderMessageID(ctx context.Context, providerID string) (*models.Message, bool, error) {
	if providerID == "" {
		return nil, false, nil
	}
	var msg models.Message
	err := l.db.WithContext(ctx).Where("provider_message_id = ?", providerID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger: lookup provider message id %s: %w", providerID, err)
	}
	return &msg, true, nil
}

// FindConversation returns the messages exchanged with a contact, newest
// first, paginated by limit and offset.
func (l *Ledger) FindConversation(ctx context.Context, contactID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var msgs []models.Message
	err := l.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: conversation for %s: %w", contactID, err)
	}
	return msgs, nil
}

var statusRank = map[models.Status]int{
	models.StatusPending:   0,
	models.StatusSent:      1,
	models.StatusDelivered: 2,
	models.StatusReceived:  2,
	models.StatusRead:      3,
}

// canTransition reports whether the current status may move to the reported
// one. Rank order is monotonic rather than strictly adjacent: providers drop
// intermediate callbacks, so sent may jump straight to read. Failed is
// reachable from any live state and terminal once entered.
func canTransition(from, to models.Status) bool {
	if to == models.StatusFailed {
		return from != models.StatusFailed
	}
	if from == models.StatusFailed {
		return false
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}
