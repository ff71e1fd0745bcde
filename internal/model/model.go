// Package model содержит доменные сущности маркетплейса с допуском по рекомендации.
package model

import "time"

// Language описывает язык интерфейса пользователя.
type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageEstonian Language = "et"
	LanguageRussian  Language = "ru"
)

// DefaultLanguage используется для новых аккаунтов, если не задано иное.
const DefaultLanguage = LanguageEnglish

// Languages перечисляет поддерживаемые языки в порядке отображения.
var Languages = []Language{LanguageEnglish, LanguageEstonian, LanguageRussian}

// IsSupported сообщает, входит ли язык в фиксированный набор.
func (l Language) IsSupported() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// AdmissionStatus описывает статус допуска пользователя к витрине.
type AdmissionStatus string

const (
	AdmissionNew      AdmissionStatus = "NEW"
	AdmissionPending  AdmissionStatus = "PENDING"
	AdmissionSafe     AdmissionStatus = "SAFE"
	AdmissionDeclined AdmissionStatus = "DECLINED"
)

// InteractionState описывает единственное ожидаемое от пользователя текстовое действие.
type InteractionState string

const (
	StateNone            InteractionState = "NONE"
	StateAwaitingVouch   InteractionState = "AWAITING_VOUCH"
	StateAwaitingAddress InteractionState = "AWAITING_ADDRESS"
)

// Account представляет пользователя чата.
type Account struct {
	ID         int64
	Username   string
	Language   Language
	Status     AdmissionStatus
	State      InteractionState
	TotalSpent int64
	CreatedAt  time.Time
}

// ClaimStatus описывает статус заявки с рекомендацией.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "PENDING"
	ClaimAccepted ClaimStatus = "ACCEPTED"
	ClaimDeclined ClaimStatus = "DECLINED"
)

// ClaimOutcome описывает последствия решения по заявке.
type ClaimOutcome int

const (
	// ClaimUnchanged: заявка уже была решена, ничего не изменилось.
	ClaimUnchanged ClaimOutcome = iota
	// ClaimStale: заявка решена, но заявитель уже не ждал решения, и его статус не менялся.
	ClaimStale
	// ClaimApplied: заявка решена, статус заявителя изменён.
	ClaimApplied
)

// Claim описывает заявку на допуск: заявитель указывает, кто за него ручается.
type Claim struct {
	ID            int64
	ApplicantID   int64
	VoucherHandle string
	Status        ClaimStatus
	CreatedAt     time.Time
	DecidedAt     *time.Time
}

// Item описывает позицию каталога.
type Item struct {
	ID          int64
	Name        string
	Description string
	PriceCents  int64
	ImageRef    string
}

// FulfillmentStatus описывает статус исполнения заказа. Переходы только вперёд.
type FulfillmentStatus string

const (
	FulfillmentNew  FulfillmentStatus = "NEW"
	FulfillmentSeen FulfillmentStatus = "SEEN"
	FulfillmentDone FulfillmentStatus = "DONE"
)

// OrderLine фиксирует позицию корзины на момент оформления заказа.
type OrderLine struct {
	ItemID         int64  `json:"item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// TotalCents возвращает стоимость строки.
func (l OrderLine) TotalCents() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

// Order описывает оформленный заказ.
type Order struct {
	ID                int64
	BuyerID           int64
	Lines             []OrderLine
	SubtotalCents     int64
	DeliveryRequested bool
	Address           string
	DeliveryFeeCents  int64
	TotalCents        int64
	Status            FulfillmentStatus
	CreatedAt         time.Time
	CompletedAt       *time.Time
}
