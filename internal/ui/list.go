package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/djai/internal/models"
)

var _ list.Item = entryItem{}

// entryItem wraps [models.ResolvedEntry] to implement [list.Item].
type entryItem struct {
	entry    models.ResolvedEntry
	position int
}

func (i entryItem) FilterValue() string { return i.entry.Track.Title }
func (i entryItem) Title() string {
	return fmt.Sprintf("%2d. %s", i.position, i.entry.Track.Title)
}
func (i entryItem) Description() string {
	desc := i.entry.Track.ArtistNames()
	if i.entry.Reason != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.entry.Reason)
	}
	return desc
}

func entryItems(entries []models.ResolvedEntry) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = entryItem{entry: e, position: i + 1}
	}
	return items
}
