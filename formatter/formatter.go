// Package formatter renders standup records as message blocks ready to be posted to the standup channel,
// either as a digest of a day's updates grouped by team or as a single update
package formatter

import (
	"fmt"

	"github.com/alexandre-normand/standupscot/standup"
)

// Block colors
const (
	DigestColor      = "#dfdfdf"
	GroupHeaderColor = "#7DCC34"
	SingleColor      = "#FFA300"
)

// Field titles in the order they appear in a block
const (
	TodayTitle    = "Today"
	PreviousTitle = "Yesterday/Previously"
	BlockersTitle = "Blockers"
)

const (
	fallbackText     = "Sorry Could not display standups in this type of device. Check in desktop browser"
	singleFooter     = "Posted as individual"
	teamFooterFormat = "Posted as %s"
	teamPretext      = "Team %s Standups"
)

// Field is a titled value of a MessageBlock
type Field struct {
	Title string
	Value string
	Short bool
}

// MessageBlock is the rendering of a single standup record
type MessageBlock struct {
	// Title identifies the user who posted the standup
	Title   string
	Pretext string
	Color   string
	Fields  []Field
	Footer  string

	// Fallback is shown by clients that can't render blocks
	Fallback string

	// GroupHeader is true when the block starts a new team section of a digest
	GroupHeader bool
}

// FormatDigest renders records in the given order, which is expected to be sorted by team. The first block and
// every block for a team different from the previous record's team is a group header. An empty input returns a
// standup.ErrNoContent error and callers are expected to post a placeholder message instead
func FormatDigest(records []standup.Record) (blocks []MessageBlock, err error) {
	if len(records) == 0 {
		return nil, standup.ErrNoContent
	}

	blocks = make([]MessageBlock, 0, len(records))
	for i, r := range records {
		b := newBlock(r, DigestColor, fmt.Sprintf(teamFooterFormat, r.Team))

		if i == 0 || r.Team != records[i-1].Team {
			b.GroupHeader = true
			b.Color = GroupHeaderColor
			b.Pretext = fmt.Sprintf(teamPretext, r.Team)
		}

		blocks = append(blocks, b)
	}

	return blocks, nil
}

// FormatSingle renders a record posted individually. It's never a group header
func FormatSingle(record standup.Record) (block MessageBlock) {
	return newBlock(record, SingleColor, singleFooter)
}

func newBlock(r standup.Record, color string, footer string) (b MessageBlock) {
	b = MessageBlock{
		Title:    fmt.Sprintf("<@%s>", r.Username),
		Color:    color,
		Fallback: fallbackText,
		Footer:   footer,
		Fields:   []Field{{Title: TodayTitle, Value: r.Today}},
	}

	if r.Previous != nil {
		b.Fields = append(b.Fields, Field{Title: PreviousTitle, Value: *r.Previous})
	}

	if r.Blockers != nil {
		b.Fields = append(b.Fields, Field{Title: BlockersTitle, Value: *r.Blockers})
	}

	return b
}

// DigestHeadline returns the text posted along with the digest of date
func DigestHeadline(date string) string {
	return fmt.Sprintf("*📅 Showing Standup Updates On %s*\n\n", standup.HumanDate(date))
}

// NoContentHeadline returns the text posted in place of an empty digest of date
func NoContentHeadline(date string) string {
	return fmt.Sprintf("*📅 Nothing to show. No standup updates for %s*", standup.HumanDate(date))
}

// SingleHeadline returns the text posted along with a single update posted on date
func SingleHeadline(date string) string {
	return fmt.Sprintf("🔔*New standup update posted %s*\n\n", standup.HumanDate(date))
}
