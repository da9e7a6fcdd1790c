package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type EventKind string

const (
	EventSaleCreated    EventKind = "sale:created"
	EventSaleDeleted    EventKind = "sale:deleted"
	EventStockUpdated   EventKind = "stock:updated"
	EventVariantCreated EventKind = "variant:created"
	EventVariantDeleted EventKind = "variant:deleted"
	EventJerseyDeleted  EventKind = "jersey:deleted"
	EventCouponImported EventKind = "coupon:imported"
	EventCouponClaimed  EventKind = "coupon:claimed"
)

// Topic is the entity kind an event belongs to, e.g. "stock" for "stock:updated".
type Topic string

const (
	TopicSale    Topic = "sale"
	TopicStock   Topic = "stock"
	TopicVariant Topic = "variant"
	TopicJersey  Topic = "jersey"
	TopicCoupon  Topic = "coupon"
)

func (k EventKind) Topic() Topic {
	topic, _, _ := strings.Cut(string(k), ":")
	return Topic(topic)
}

// Event is one committed fact. Key identifies the entity whose events are ordered
// relative to each other: the SKU for stock, the jersey id for catalog events.
type Event struct {
	Kind    EventKind `json:"kind"`
	Key     string    `json:"key"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

type SaleCreated struct {
	Sale Sale `json:"sale"`
}

type SaleDeleted struct {
	SaleID uint   `json:"sale_id"`
	SKU    string `json:"sku"`
}

type StockUpdated struct {
	SKU         string `json:"sku"`
	NewQuantity int    `json:"new_quantity"`
	JerseyID    uint   `json:"jersey_id"`
	Version     int64  `json:"version"`
}

type VariantCreated struct {
	JerseyID uint    `json:"jersey_id"`
	Variant  Variant `json:"variant"`
}

type VariantDeleted struct {
	JerseyID  uint   `json:"jersey_id"`
	VariantID uint   `json:"variant_id"`
	SKU       string `json:"sku"`
}

type JerseyDeleted struct {
	JerseyID uint `json:"jersey_id"`
}

type CouponImported struct {
	Coupon Coupon `json:"coupon"`
}

type CouponClaimed struct {
	CouponID uint   `json:"coupon_id"`
	Code     string `json:"code"`
}

func jerseyKey(id uint) string {
	return "jersey:" + strconv.FormatUint(uint64(id), 10)
}

func NewSaleCreatedEvent(s Sale, at time.Time) Event {
	return Event{Kind: EventSaleCreated, Key: s.SKU, At: at, Payload: SaleCreated{Sale: s}}
}

func NewSaleDeletedEvent(s Sale, at time.Time) Event {
	return Event{Kind: EventSaleDeleted, Key: s.SKU, At: at, Payload: SaleDeleted{SaleID: s.ID, SKU: s.SKU}}
}

func NewStockUpdatedEvent(level StockLevel, at time.Time) Event {
	return Event{Kind: EventStockUpdated, Key: level.SKU, At: at, Payload: StockUpdated{
		SKU:         level.SKU,
		NewQuantity: level.Quantity,
		JerseyID:    level.JerseyID,
		Version:     level.Version,
	}}
}

func NewVariantCreatedEvent(v Variant, at time.Time) Event {
	return Event{Kind: EventVariantCreated, Key: jerseyKey(v.JerseyID), At: at, Payload: VariantCreated{JerseyID: v.JerseyID, Variant: v}}
}

func NewVariantDeletedEvent(v Variant, at time.Time) Event {
	return Event{Kind: EventVariantDeleted, Key: jerseyKey(v.JerseyID), At: at, Payload: VariantDeleted{
		JerseyID:  v.JerseyID,
		VariantID: v.ID,
		SKU:       v.SKU,
	}}
}

func NewJerseyDeletedEvent(jerseyID uint, at time.Time) Event {
	return Event{Kind: EventJerseyDeleted, Key: jerseyKey(jerseyID), At: at, Payload: JerseyDeleted{JerseyID: jerseyID}}
}

func NewCouponImportedEvent(c Coupon, at time.Time) Event {
	return Event{Kind: EventCouponImported, Key: "coupons", At: at, Payload: CouponImported{Coupon: c}}
}

func NewCouponClaimedEvent(c Coupon, at time.Time) Event {
	return Event{Kind: EventCouponClaimed, Key: "coupons", At: at, Payload: CouponClaimed{CouponID: c.ID, Code: c.Code}}
}

// UnmarshalJSON restores the typed payload for known kinds.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind    EventKind       `json:"kind"`
		Key     string          `json:"key"`
		At      time.Time       `json:"at"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var payload any
	var err error
	switch raw.Kind {
	case EventSaleCreated:
		payload, err = decodePayload[SaleCreated](raw.Payload)
	case EventSaleDeleted:
		payload, err = decodePayload[SaleDeleted](raw.Payload)
	case EventStockUpdated:
		payload, err = decodePayload[StockUpdated](raw.Payload)
	case EventVariantCreated:
		payload, err = decodePayload[VariantCreated](raw.Payload)
	case EventVariantDeleted:
		payload, err = decodePayload[VariantDeleted](raw.Payload)
	case EventJerseyDeleted:
		payload, err = decodePayload[JerseyDeleted](raw.Payload)
	case EventCouponImported:
		payload, err = decodePayload[CouponImported](raw.Payload)
	case EventCouponClaimed:
		payload, err = decodePayload[CouponClaimed](raw.Payload)
	default:
		payload = raw.Payload
	}
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", raw.Kind, err)
	}

	e.Kind, e.Key, e.At, e.Payload = raw.Kind, raw.Key, raw.At, payload
	return nil
}

func decodePayload[T any](data json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
