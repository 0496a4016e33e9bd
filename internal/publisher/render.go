package publisher

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/notifier"
)

var printer = message.NewPrinter(language.English)

// Render builds the notification presentation of deal.
func (p *Publisher) Render(deal models.DealRecord, b models.Branding) notifier.Embed {
	embed := notifier.Embed{
		Title:     deal.Title,
		URL:       deal.Link,
		Color:     b.Color,
		Timestamp: p.now().UTC().Format(time.RFC3339),
		Image:     &notifier.EmbedMedia{URL: deal.Image},
		Author: &notifier.EmbedAuthor{
			Name:    b.AuthorName,
			URL:     b.AuthorURL,
			IconURL: b.IconURL,
		},
		Fields: []notifier.EmbedField{
			{Name: "Price", Value: FormatPrice(deal.Price), Inline: true},
			{Name: "Deal Score", Value: FormatScore(deal.DealScore), Inline: true},
		},
	}
	if p.opts.FooterText != "" || p.opts.FooterIcon != "" {
		embed.Footer = &notifier.EmbedFooter{Text: p.opts.FooterText, IconURL: p.opts.FooterIcon}
	}
	return embed
}

// FormatPrice renders 0 as FREE and anything else as dollars with grouping.
func FormatPrice(price float64) string {
	if price == 0 {
		return "FREE"
	}
	return "$" + printer.Sprintf("%.2f", price)
}

// FormatScore prefixes positive scores with '+'; an unknown score is N/A.
func FormatScore(score *int) string {
	if score == nil {
		return "N/A"
	}
	if *score > 0 {
		return "+" + printer.Sprintf("%d", *score)
	}
	return printer.Sprintf("%d", *score)
}
