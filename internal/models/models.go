package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Permission string

const (
	PermissionAdmin            Permission = "ADMIN"
	PermissionUser             Permission = "USER"
	PermissionItemCreate       Permission = "ITEMCREATE"
	PermissionItemUpdate       Permission = "ITEMUPDATE"
	PermissionItemDelete       Permission = "ITEMDELETE"
	PermissionPermissionUpdate Permission = "PERMISSIONUPDATE"
)

var AllPermissions = []Permission{
	PermissionAdmin,
	PermissionUser,
	PermissionItemCreate,
	PermissionItemUpdate,
	PermissionItemDelete,
	PermissionPermissionUpdate,
}

func ParsePermission(s string) (Permission, bool) {
	for _, p := range AllPermissions {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Permissions is stored as a postgres text array literal, e.g. {"ADMIN","USER"}.
type Permissions []Permission

func (p Permissions) Value() (driver.Value, error) {
	arr := make(pq.StringArray, 0, len(p))
	for _, perm := range p {
		arr = append(arr, string(perm))
	}
	return arr.Value()
}

func (p *Permissions) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	out := make(Permissions, 0, len(arr))
	for _, s := range arr {
		out = append(out, Permission(s))
	}
	*p = out
	return nil
}

func (Permissions) GormDataType() string { return "text" }

// HasAny reports whether p shares at least one permission with required.
func (p Permissions) HasAny(required ...Permission) bool {
	for _, have := range p {
		for _, want := range required {
			if have == want {
				return true
			}
		}
	}
	return false
}

type User struct {
	ID               uuid.UUID   `gorm:"primaryKey"              json:"id"`
	Name             string      `gorm:"not null"                json:"name"`
	Email            string      `gorm:"uniqueIndex;not null"    json:"email"`
	PasswordHash     string      `gorm:"not null"                json:"-"`
	Permissions      Permissions `gorm:"not null"                json:"permissions"`
	ResetToken       *string     `gorm:"index"                   json:"-"`
	ResetTokenExpiry *time.Time  `                               json:"-"`
	CreatedAt        time.Time   `                               json:"created_at"`
	UpdatedAt        time.Time   `                               json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Item struct {
	ID          uuid.UUID `gorm:"primaryKey"                json:"id"`
	Title       string    `gorm:"not null"                  json:"title"`
	Description string    `gorm:"not null"                  json:"description"`
	Image       string    `                                 json:"image"`
	LargeImage  string    `                                 json:"large_image"`
	Price       int64     `gorm:"not null;check:price >= 0" json:"price"`
	UserID      uuid.UUID `gorm:"index;not null"            json:"user_id"`
	CreatedAt   time.Time `                                 json:"created_at"`
	UpdatedAt   time.Time `                                 json:"updated_at"`
}

func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type CartItem struct {
	ID        uuid.UUID `gorm:"primaryKey"                                 json:"id"`
	Quantity  uint      `gorm:"not null;default:1;check:quantity > 0"      json:"quantity"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_cart_user_item;not null"    json:"user_id"`
	ItemID    uuid.UUID `gorm:"uniqueIndex:idx_cart_user_item;not null"    json:"item_id"`
	Item      Item      `gorm:"foreignKey:ItemID"                          json:"item"`
	CreatedAt time.Time `                                                  json:"created_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Order struct {
	ID        uuid.UUID   `gorm:"primaryKey"        json:"id"`
	Total     int64       `gorm:"not null"          json:"total"`
	Charge    string      `gorm:"not null"          json:"charge"`
	UserID    uuid.UUID   `gorm:"index;not null"    json:"user_id"`
	Items     []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt time.Time   `                         json:"created_at"`
	UpdatedAt time.Time   `                         json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is a copy of an item taken at purchase time. It keeps no
// reference to the source Item.
type OrderItem struct {
	ID          uuid.UUID `gorm:"primaryKey"                    json:"id"`
	OrderID     uuid.UUID `gorm:"index;not null"                json:"order_id"`
	UserID      uuid.UUID `gorm:"index;not null"                json:"user_id"`
	Title       string    `gorm:"not null"                      json:"title"`
	Description string    `gorm:"not null"                      json:"description"`
	Image       string    `                                     json:"image"`
	LargeImage  string    `                                     json:"large_image"`
	Price       int64     `gorm:"not null"                      json:"price"`
	Quantity    uint      `gorm:"not null;check:quantity > 0"   json:"quantity"`
}

func (o *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type ChargeStatus string

const (
	ChargePending   ChargeStatus = "pending"
	ChargeFailed    ChargeStatus = "failed"
	ChargeCharged   ChargeStatus = "charged"
	ChargeCompleted ChargeStatus = "completed"
	ChargeAbandoned ChargeStatus = "abandoned"
)

// LineSnapshot is one purchased cart line as it looked when the charge was made.
type LineSnapshot struct {
	CartItemID  string `json:"cart_item_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	LargeImage  string `json:"large_image"`
	Price       int64  `json:"price"`
	Quantity    uint   `json:"quantity"`
}

type Snapshot []LineSnapshot

func (s Snapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Snapshot) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("snapshot: unsupported source type")
	}
}

func (Snapshot) GormDataType() string { return "text" }

// ChargeAttempt records one checkout from the moment before the payment
// call until the order is written.
type ChargeAttempt struct {
	ID             uuid.UUID      `gorm:"primaryKey"             json:"id"`
	IdempotencyKey string         `gorm:"uniqueIndex;not null"   json:"idempotency_key"`
	UserID         uuid.UUID      `gorm:"index;not null"         json:"user_id"`
	Amount         int64          `gorm:"not null"               json:"amount"`
	Currency       string         `gorm:"not null"               json:"currency"`
	Status         ChargeStatus   `gorm:"index;not null"         json:"status"`
	ChargeID       string         `                              json:"charge_id"`
	OrderID        *uuid.UUID     `                              json:"order_id"`
	Lines          Snapshot       `gorm:"not null"               json:"lines"`
	Error          string         `                              json:"error"`
	CreatedAt      time.Time      `                              json:"created_at"`
	UpdatedAt      time.Time      `                              json:"updated_at"`
}

func (c *ChargeAttempt) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Total is the sum of price*quantity over the snapshot, in the smallest
// currency unit.
func (s Snapshot) Total() int64 {
	var total int64
	for _, l := range s {
		total += l.Price * int64(l.Quantity)
	}
	return total
}

func All() []any {
	return []any{&User{}, &Item{}, &CartItem{}, &Order{}, &OrderItem{}, &ChargeAttempt{}}
}
