package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Canonical message status vocabulary. Provider-specific status strings are
// mapped onto these before they ever touch a Message row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
	// StatusReceived appears on the wire for inbound receipts; stored
	// messages use StatusDelivered.
	StatusReceived Status = "received"
	// StatusUnknown is recorded in history for unrecognized provider
	// vocabulary but is never asserted as a message's current status.
	StatusUnknown Status = "unknown"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MessageType string

const (
	TypeText     MessageType = "text"
	TypeMedia    MessageType = "media"
	TypeTemplate MessageType = "template"
)

// Contact represents a WhatsApp conversation partner, keyed by E.164 phone.
type Contact struct {
	ID        string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	Phone     string            `gorm:"type:varchar(20);not null;uniqueIndex" json:"phone"`
	Name      string            `gorm:"type:varchar(255)" json:"name"`
	Tags      datatypes.JSON    `gorm:"type:text" json:"tags"`
	Metadata  datatypes.JSONMap `gorm:"type:text" json:"metadata"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// StatusEntry is one recorded status observation for a message.
type StatusEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusHistory is the append-only list of status observations, stored as a
// JSON column.
type StatusHistory []StatusEntry

func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		h = StatusHistory{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *StatusHistory) Scan(value interface{}) error {
	if value == nil {
		*h = StatusHistory{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("status history: unsupported column type %T", value)
	}
	if len(b) == 0 {
		*h = StatusHistory{}
		return nil
	}
	return json.Unmarshal(b, h)
}

// Message is one unit of WhatsApp communication, inbound or outbound.
//
// ProviderMessageID and StatusHistory are first-class columns rather than
// metadata keys: the status-callback join and the transition log depend on
// them. Metadata stays an open map for provider extras.
type Message struct {
	ID                string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	Content           string            `gorm:"type:text" json:"content"`
	Type              MessageType       `gorm:"type:varchar(20);not null" json:"type"`
	Direction         Direction         `gorm:"type:varchar(10);not null" json:"direction"`
	Status            Status            `gorm:"type:varchar(20);not null" json:"status"`
	ContactID         string            `gorm:"type:varchar(36);index;not null" json:"contact_id"`
	SenderID          string            `gorm:"type:varchar(36)" json:"sender_id,omitempty"`
	ProviderMessageID string            `gorm:"type:varchar(100);index" json:"provider_message_id,omitempty"`
	StatusHistory     StatusHistory     `gorm:"type:text" json:"status_history"`
	Metadata          datatypes.JSONMap `gorm:"type:text" json:"metadata"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
