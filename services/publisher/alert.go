package publisher

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	perrors "sjsage522/pricemonitor/pkg/errors"
)

// AlertKey is the stream field carrying an encoded PriceAlert
const AlertKey = "b64_price_alert"

// PriceAlert is emitted when a monitored product's price changes
type PriceAlert struct {
	// ID lets consumers drop redelivered alerts
	ID            string          `json:"id"`
	ChatID        int64           `json:"chat_id"`
	URL           string          `json:"url"`
	Name          string          `json:"name"`
	OldPrice      decimal.Decimal `json:"old_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	CheckedAt     time.Time       `json:"checked_at"`
	// Message is the rendered notification text for the chat bridge
	Message string `json:"message,omitempty"`
}

// NewPriceAlert computes the absolute and relative change between two prices
func NewPriceAlert(chatID int64, url, name string, oldPrice, newPrice decimal.Decimal, checkedAt time.Time) PriceAlert {
	change := newPrice.Sub(oldPrice)
	percent := decimal.Zero
	if !oldPrice.IsZero() {
		percent = change.Div(oldPrice).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return PriceAlert{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		URL:           url,
		Name:          name,
		OldPrice:      oldPrice,
		NewPrice:      newPrice,
		Change:        change,
		ChangePercent: percent,
		CheckedAt:     checkedAt,
	}
}

// Dropped reports whether the price went down
func (a PriceAlert) Dropped() bool {
	return a.Change.IsNegative()
}

// PublishAlert encodes alert and publishes it under AlertKey
func PublishAlert(p Publisher, alert PriceAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return perrors.NewPublisher("failed to encode price alert", err)
	}
	return p.Publish(AlertKey, data)
}
