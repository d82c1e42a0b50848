package models

import (
	"fmt"
	"strings"
	"time"
)

// LineItem is one entry sent to the payment provider. UnitAmount is in minor
// currency units (pence for gbp).
type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int64  `json:"quantity"`
}

// PaymentSessionRequest describes the hosted payment page to create.
type PaymentSessionRequest struct {
	Currency          string
	LineItems         []LineItem
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
}

// PaymentSession is the provider handle the browser redirects with.
type PaymentSession struct {
	ID                string `json:"id"`
	URL               string `json:"url,omitempty"`
	Paid              bool   `json:"paid"`
	ClientReferenceID string `json:"-"`
}

// StockShortfall reports a cart entry asking for more than is in stock.
type StockShortfall struct {
	ProductID uint   `json:"product_id"`
	Title     string `json:"title"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (s StockShortfall) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Only %d available.", s.Title, s.Available)
}

// CheckoutRow is one rendered cart table row.
type CheckoutRow struct {
	ProductID uint    `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// CheckoutView is everything the checkout page needs to render.
type CheckoutView struct {
	Rows           []CheckoutRow    `json:"rows"`
	Total          float64          `json:"total"`
	Currency       string           `json:"currency"`
	LineItems      []LineItem       `json:"line_items,omitempty"`
	Errors         []StockShortfall `json:"errors,omitempty"`
	Success        bool             `json:"success"`
	Session        *PaymentSession  `json:"session,omitempty"`
	PublishableKey string           `json:"publishable_key,omitempty"`
	CartCount      int              `json:"cart_count"`
}

// Empty reports whether there is nothing to show in the cart table.
func (v *CheckoutView) Empty() bool {
	return len(v.Rows) == 0
}

// ErrorMessages returns the shortfall messages in row order.
func (v *CheckoutView) ErrorMessages() []string {
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		msgs = append(msgs, e.Error())
	}
	return msgs
}

// CheckoutCompletedEvent is published after stock has been committed.
type CheckoutCompletedEvent struct {
	EventType        string        `json:"event_type"`
	SessionID        string        `json:"session_id"`
	PaymentSessionID string        `json:"payment_session_id,omitempty"`
	Changes          []StockChange `json:"changes"`
	Total            float64       `json:"total"`
	Currency         string        `json:"currency"`
	Timestamp        time.Time     `json:"timestamp"`
}

// MinorUnits converts a decimal amount to minor currency units.
func MinorUnits(amount float64) int64 {
	if amount >= 0 {
		return int64(amount*100 + 0.5)
	}
	return int64(amount*100 - 0.5)
}

// CurrencySymbol returns the display prefix for an ISO currency code.
func CurrencySymbol(code string) string {
	switch strings.ToLower(code) {
	case "gbp":
		return "£"
	case "usd":
		return "$"
	case "eur":
		return "€"
	default:
		return strings.ToUpper(code) + " "
	}
}

// FormatMoney renders an amount with two decimals and its currency symbol.
func FormatMoney(code string, amount float64) string {
	return fmt.Sprintf("%s%.2f", CurrencySymbol(code), amount)
}
