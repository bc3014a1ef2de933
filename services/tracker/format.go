package tracker

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"sjsage522/pricemonitor/services/publisher"
	"sjsage522/pricemonitor/services/store"
)

// FormatPrice renders a price for display, e.g. €38.99
func FormatPrice(price decimal.Decimal) string {
	return "€" + price.StringFixed(2)
}

// FormatAlert renders the notification text for a price change
func FormatAlert(a publisher.PriceAlert) string {
	trend := "📈"
	sign := "+"
	if a.Dropped() {
		trend = "📉"
		sign = ""
	}
	return fmt.Sprintf(
		"💰 Price Change Alert!\n\n📦 %s\nOld price: %s\nNew price: %s\nChange: %s %s (%s%s%%)\n\n🔗 %s",
		a.Name,
		FormatPrice(a.OldPrice),
		FormatPrice(a.NewPrice),
		trend,
		FormatPrice(a.Change.Abs()),
		sign,
		a.ChangePercent.StringFixed(1),
		a.URL,
	)
}

// FormatList renders a chat's product list
func FormatList(entries []store.Entry) string {
	if len(entries) == 0 {
		return "You have no products being monitored."
	}

	var b strings.Builder
	b.WriteString("📊 Your Monitored Products:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "📦 %s\n", e.Name)
		fmt.Fprintf(&b, "💰 Last price: %s\n", FormatPrice(e.LastPrice))
		fmt.Fprintf(&b, "⏰ Added: %s\n", e.AddedDate.Format("2006-01-02"))
		fmt.Fprintf(&b, "🔗 %s\n\n", e.URL)
	}
	return b.String()
}

// FormatStatus renders the status summary for one chat
func FormatStatus(s Status) string {
	return fmt.Sprintf(
		"📊 Bot Status\n\n🔄 Check Interval: %d seconds\n📦 Your Monitored Products: %d\n✅ Bot is running normally",
		int(s.CheckInterval.Seconds()),
		s.Products,
	)
}
