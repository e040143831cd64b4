package paginator

import (
	"fmt"
	"strings"

	"github.com/sipeed/picopager/pkg/bus"
)

// Render builds the payload for page. page must already be within
// [1, TotalPages()].
func (p *Paginator) Render(page int) bus.OutboundMessage {
	start := (page - 1) * p.itemsPerPage
	end := min(len(p.items), page*p.itemsPerPage)

	embed := &bus.Embed{Color: p.color(page, p.pages)}
	if p.columns == 1 {
		embed.Description = p.renderRange(start, end)
	} else {
		per := (end - start + p.columns - 1) / p.columns
		for k := 0; k < p.columns; k++ {
			from := min(end, start+k*per)
			to := min(end, start+(k+1)*per)
			embed.Fields = append(embed.Fields, bus.EmbedField{
				Value:  p.renderRange(from, to),
				Inline: true,
			})
		}
	}
	if p.showPageNumbers {
		embed.Footer = fmt.Sprintf("Page %d/%d", page, p.pages)
	}

	msg := bus.OutboundMessage{Embed: embed}
	if p.text != nil {
		msg.Content = p.text(page, p.pages)
	}
	return msg
}

func (p *Paginator) renderRange(from, to int) string {
	var sb strings.Builder
	for i := from; i < to; i++ {
		if i > from {
			sb.WriteByte('\n')
		}
		if p.numberItems {
			fmt.Fprintf(&sb, "%d. ", i+1)
		}
		sb.WriteString(p.items[i])
	}
	return sb.String()
}
