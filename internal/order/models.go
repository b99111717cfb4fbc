// Package order implements the durable Order data model and the
// OrderEngine state machine (spec §3, §4.6): the order is the sole
// long-term source of truth, persisted through GORM the way
// order_service/src/models/order.go persists its IATA ONE Order
// aggregate — metadata-as-JSON-string, UUID BeforeCreate hooks, an
// append-only audit trail side table.
package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"iaros/retailing-engine/internal/catalog"
)

// Status is the OrderEngine state machine's states (spec §4.6).
type Status string

const (
	StatusProposed       Status = "PROPOSED"
	StatusPaymentPending Status = "PAYMENT_PENDING"
	StatusPaid           Status = "PAID"
	StatusFulfilled      Status = "FULFILLED"
	StatusArchived       Status = "ARCHIVED"
	StatusCancelled      Status = "CANCELLED"
	StatusExpired        Status = "EXPIRED"
)

// ItemStatus is an OrderItem's lifecycle (spec §3).
type ItemStatus string

const (
	ItemActive    ItemStatus = "ACTIVE"
	ItemRefunded  ItemStatus = "REFUNDED"
	ItemCancelled ItemStatus = "CANCELLED"
)

// PTC is the passenger type code (spec §3 Glossary).
type PTC string

const (
	PTCAdult PTC = "ADT"
	PTCChild PTC = "CHD"
	PTCInfant PTC = "INF"
)

// FulfillmentType distinguishes the two barcode media spec §3 names.
type FulfillmentType string

const (
	FulfillmentBarcode FulfillmentType = "BARCODE"
	FulfillmentQR      FulfillmentType = "QR"
)

// LedgerKind enumerates the append-only financial record kinds (spec §3).
type LedgerKind string

const (
	LedgerRevenueRecognized LedgerKind = "REVENUE_RECOGNIZED"
	LedgerRefund            LedgerKind = "REFUND"
	LedgerAdjustment        LedgerKind = "ADJUSTMENT"
)

// OrderItem is a line item within an order (spec §3). Invariant:
// order.total = sum of ACTIVE items' unit_price * quantity (P5).
type OrderItem struct {
	ID          uint                `gorm:"primaryKey" json:"-"`
	ItemID      string              `gorm:"uniqueIndex;size:36" json:"item_id"`
	OrderID     string              `gorm:"index;size:36" json:"order_id"`
	ProductID   string              `gorm:"size:36" json:"product_id"`
	ProductType catalog.ProductType `gorm:"size:20" json:"product_type"`
	UnitPrice   decimal.Decimal     `gorm:"type:decimal(14,2)" json:"unit_price"`
	Quantity    int                 `json:"quantity"`
	Status      ItemStatus          `gorm:"size:20" json:"status"`
	Metadata    string              `gorm:"type:text" json:"metadata"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (OrderItem) TableName() string { return "order_items" }

func (oi *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if oi.ItemID == "" {
		oi.ItemID = uuid.New().String()
	}
	if oi.Status == "" {
		oi.Status = ItemActive
	}
	return nil
}

// GetMetadata decodes the item's opaque metadata (seat assignment, meal
// choice, flight id, and the reservation tickets HoldManager needs to
// compensate on release — spec §4.5's "compute the original reservation
// tickets from item metadata").
func (oi *OrderItem) GetMetadata() (map[string]interface{}, error) {
	if oi.Metadata == "" {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	err := json.Unmarshal([]byte(oi.Metadata), &m)
	return m, err
}

func (oi *OrderItem) SetMetadata(m map[string]interface{}) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	oi.Metadata = string(data)
	return nil
}

// Total returns the item's contribution to the order total.
func (oi *OrderItem) Total() decimal.Decimal {
	return oi.UnitPrice.Mul(decimal.NewFromInt(int64(oi.Quantity)))
}

// Traveler is a passenger on the order (spec §3). Unique per (order_id, index).
type Traveler struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	TravelerID string `gorm:"uniqueIndex;size:36" json:"traveler_id"`
	OrderID    string `gorm:"index:idx_traveler_order_index,priority:1;size:36" json:"order_id"`
	Index      int    `gorm:"index:idx_traveler_order_index,priority:2" json:"index"`
	PTC        PTC    `gorm:"size:3" json:"ptc"`
	FirstName  string `gorm:"size:100" json:"first_name"`
	LastName   string `gorm:"size:100" json:"last_name"`
	DOB        string `gorm:"size:10" json:"dob,omitempty"`
	Gender     string `gorm:"size:10" json:"gender,omitempty"`
	DID        string `gorm:"size:100" json:"did,omitempty"`
}

func (Traveler) TableName() string { return "travelers" }

func (t *Traveler) BeforeCreate(tx *gorm.DB) error {
	if t.TravelerID == "" {
		t.TravelerID = uuid.New().String()
	}
	return nil
}

// Contact is the order's contact record, kept as its own row in the
// teacher's one-to-one-side-table style (order_service's ContactInfo).
type Contact struct {
	ID      uint   `gorm:"primaryKey" json:"-"`
	OrderID string `gorm:"uniqueIndex;size:36" json:"order_id"`
	Email   string `gorm:"size:255" json:"email"`
	Phone   string `gorm:"size:20" json:"phone,omitempty"`
}

func (Contact) TableName() string { return "order_contacts" }

// Fulfillment is a delivered travel document (spec §3). Generated
// atomically on the PAID transition; consumption is gated by I4.
type Fulfillment struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	FulfillmentID string        `gorm:"uniqueIndex;size:36" json:"fulfillment_id"`
	OrderID     string          `gorm:"index;size:36" json:"order_id"`
	ItemID      string          `gorm:"index;size:36" json:"item_id"`
	Type        FulfillmentType `gorm:"size:10" json:"type"`
	Barcode     string          `gorm:"uniqueIndex;size:64" json:"barcode"`
	ConsumedAt  *time.Time      `json:"consumed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Fulfillment) TableName() string { return "fulfillment" }

func (f *Fulfillment) BeforeCreate(tx *gorm.DB) error {
	if f.FulfillmentID == "" {
		f.FulfillmentID = uuid.New().String()
	}
	if f.Barcode == "" {
		f.Barcode = uuid.New().String()
	}
	return nil
}

// LedgerEntry is the append-only financial trail (spec §3).
type LedgerEntry struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	EntryID   string          `gorm:"uniqueIndex;size:36" json:"entry_id"`
	OrderID   string          `gorm:"index;size:36" json:"order_id"`
	ItemID    string          `gorm:"index;size:36" json:"item_id"`
	Kind      LedgerKind      `gorm:"size:30" json:"kind"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger" }

func (l *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if l.EntryID == "" {
		l.EntryID = uuid.New().String()
	}
	return nil
}

// ChangeEntry is the audit trail side table (order_service's AuditEntry).
// Store.Create writes a CREATED entry for each new order; later
// transitions and modifications do not write entries.
type ChangeEntry struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	OrderID     string    `gorm:"index;size:36" json:"order_id"`
	Action      string    `gorm:"size:100" json:"action"`
	Description string    `gorm:"size:500" json:"description"`
	Metadata    string    `gorm:"type:text" json:"metadata"`
	Timestamp   time.Time `json:"timestamp"`
}

func (ChangeEntry) TableName() string { return "order_changes" }

// Order is the durable purchase record (spec §3). Version implements
// the per-order optimistic lock spec §4.6 requires for every transition.
type Order struct {
	ID            uint            `gorm:"primaryKey" json:"-"`
	OrderID       string          `gorm:"uniqueIndex;size:36" json:"order_id"`
	PrincipalID   string          `gorm:"index;size:36" json:"principal_id"`
	AirlineID     string          `gorm:"index;size:36" json:"airline_id"`
	OriginOfferID string          `gorm:"index;size:36" json:"origin_offer_id,omitempty"`
	Status        Status          `gorm:"size:20;index" json:"status"`
	Total         decimal.Decimal `gorm:"type:decimal(14,2)" json:"total"`
	PaymentReference string       `gorm:"size:100" json:"payment_reference,omitempty"`
	ExpiresAt     *time.Time      `gorm:"index" json:"expires_at,omitempty"`
	Version       int             `gorm:"default:1" json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Items       []OrderItem   `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`
	Travelers   []Traveler    `gorm:"foreignKey:OrderID;references:OrderID" json:"travelers"`
	Contact     Contact       `gorm:"foreignKey:OrderID;references:OrderID" json:"contact"`
	Fulfillment []Fulfillment `gorm:"foreignKey:OrderID;references:OrderID" json:"fulfillment"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderID == "" {
		o.OrderID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = StatusProposed
	}
	return nil
}

// RecomputeTotal enforces P5: total is the sum of ACTIVE items only.
func (o *Order) RecomputeTotal() {
	sum := decimal.Zero
	for _, it := range o.Items {
		if it.Status == ItemActive {
			sum = sum.Add(it.Total())
		}
	}
	o.Total = sum
}

// IsExpired reports whether the order's expiry boundary has passed.
func (o *Order) IsExpired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}
