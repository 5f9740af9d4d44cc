package domain

import (
	"strings"
	"time"

	"bagatelle/backend/internal/money"
)

// ExpiryDays is how long an accrued cashback entry stays redeemable.
const ExpiryDays = 90

type Customer struct {
	ID              string      `json:"id"`
	TaxID           string      `json:"tax_id"`
	FullName        string      `json:"full_name"`
	Phone           string      `json:"phone"`
	Email           string      `json:"email"`
	CashbackBalance money.Money `json:"cashback_balance"`
	CreatedAt       time.Time   `json:"created_at"`
}

type CustomerCreateRequest struct {
	TaxID    string `json:"tax_id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type CustomerUpdateRequest struct {
	TaxID    *string `json:"tax_id,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
}

type Product struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Brand     string      `json:"brand"`
	Volume    string      `json:"volume"`
	Price     money.Money `json:"price"`
	CreatedAt time.Time   `json:"created_at"`
}

// VolumeMagnitude extracts the numeric magnitude embedded in the packaged
// volume text: "100ml" yields 100, "Kit 2un" yields 2, unparsable text yields 0.
func (p Product) VolumeMagnitude() int {
	var digits strings.Builder
	for _, r := range p.Volume {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	magnitude := 0
	for _, r := range digits.String() {
		magnitude = magnitude*10 + int(r-'0')
	}
	return magnitude
}

type ProductCreateRequest struct {
	Name   string      `json:"name"`
	Brand  string      `json:"brand"`
	Volume string      `json:"volume"`
	Price  money.Money `json:"price"`
}

type ProductUpdateRequest struct {
	Name   *string      `json:"name,omitempty"`
	Brand  *string      `json:"brand,omitempty"`
	Volume *string      `json:"volume,omitempty"`
	Price  *money.Money `json:"price,omitempty"`
}

// CashbackEntry is one accrual event. Amount is the total ever granted;
// ConsumedAmount grows monotonically through redemption until the entry is
// fully consumed or expires. Entries are never deleted.
type CashbackEntry struct {
	ID             string      `json:"id"`
	CustomerID     string      `json:"customer_id"`
	Seq            int64       `json:"seq"`
	Amount         money.Money `json:"amount"`
	IssuedOn       time.Time   `json:"issued_on"`
	ExpiresOn      time.Time   `json:"expires_on"`
	ConsumedAmount money.Money `json:"consumed_amount"`
	Consumed       bool        `json:"consumed"`
	SaleID         string      `json:"sale_id,omitempty"`
}

// NewCashbackEntry establishes every entry invariant at creation time: expiry
// is issue date plus ExpiryDays, nothing consumed yet.
func NewCashbackEntry(customerID string, saleID string, amount money.Money, issuedOn time.Time) CashbackEntry {
	issuedOn = DateOf(issuedOn)
	return CashbackEntry{
		CustomerID:     customerID,
		SaleID:         saleID,
		Amount:         amount,
		IssuedOn:       issuedOn,
		ExpiresOn:      issuedOn.AddDate(0, 0, ExpiryDays),
		ConsumedAmount: money.Zero(),
		Consumed:       false,
	}
}

// ExpiredAt reports whether the entry is past its expiry date. An entry
// expiring today is still redeemable.
func (e CashbackEntry) ExpiredAt(today time.Time) bool {
	return DateOf(today).After(e.ExpiresOn)
}

// AvailableAt returns the redeemable remainder of the entry, or zero once the
// entry is consumed or expired.
func (e CashbackEntry) AvailableAt(today time.Time) money.Money {
	if e.Consumed || e.ExpiredAt(today) {
		return money.Zero()
	}
	return e.Amount.Sub(e.ConsumedAmount)
}

type SaleLine struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unit_price"`
}

// Subtotal is the price snapshot times quantity.
func (l SaleLine) Subtotal() money.Money {
	return l.UnitPrice.MulQty(l.Quantity)
}

type Sale struct {
	ID           string      `json:"id"`
	CustomerID   string      `json:"customer_id"`
	SoldAt       time.Time   `json:"sold_at"`
	Lines        []SaleLine  `json:"lines"`
	CashbackUsed money.Money `json:"cashback_used"`
	Total        money.Money `json:"total"`
}

// GrossTotal is the sum of line subtotals before cashback redemption.
func (s Sale) GrossTotal() money.Money {
	gross := money.Zero()
	for _, line := range s.Lines {
		gross = gross.Add(line.Subtotal())
	}
	return gross
}

type SaleLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// RegisterSaleRequest carries a new sale. Cashback distinguishes "absent"
// (nil, treated as zero) from an explicit negative amount, which is invalid.
type RegisterSaleRequest struct {
	CustomerID string            `json:"customer_id"`
	Lines      []SaleLineRequest `json:"lines"`
	Cashback   *money.Money      `json:"cashback,omitempty"`
}

type BalanceResponse struct {
	CustomerID string      `json:"customer_id"`
	Available  money.Money `json:"available"`
}

// ExpiringCashback joins a soon-to-expire ledger entry with the contact
// details needed for a reminder call.
type ExpiringCashback struct {
	Entry         CashbackEntry `json:"entry"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
}

type ExpiringCashbackResponse struct {
	GeneratedAt string             `json:"generated_at"`
	Items       []ExpiringCashback `json:"items"`
}

// RepurchaseSuggestion flags a historical sale whose product is predicted to
// run out around now.
type RepurchaseSuggestion struct {
	SaleID              string    `json:"sale_id"`
	CustomerID          string    `json:"customer_id"`
	CustomerName        string    `json:"customer_name"`
	CustomerPhone       string    `json:"customer_phone"`
	SoldAt              time.Time `json:"sold_at"`
	Products            []string  `json:"products"`
	PredictedExhaustion time.Time `json:"predicted_exhaustion"`
}

type RepurchaseFeed struct {
	GeneratedAt string                 `json:"generated_at"`
	Suggestions []RepurchaseSuggestion `json:"suggestions"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// DateOf truncates a timestamp to its UTC calendar date. Ledger issue and
// expiry dates are day-granular.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
