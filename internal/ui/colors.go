package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

const (
	spotifyGreen = "#1DB954"
	brightGreen  = "#1ED760"
	errorRed     = "#E22134"
	warnOrange   = "#FFA42B"
	mutedGray    = "#626262"
)

var styles = newPalette()

// palette holds the review screen styles.
type palette struct {
	title    lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
	selected lipgloss.Style
}

func newPalette() *palette {
	return &palette{
		title:    fg(spotifyGreen).Bold(true).MarginBottom(1),
		ok:       fg(brightGreen).Bold(true),
		err:      fg(errorRed).Bold(true),
		warn:     fg(warnOrange),
		help:     fg(mutedGray).Italic(true),
		selected: fg(brightGreen).Bold(true),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// newEntryDelegate renders the highlighted track in green with a matching left border.
func newEntryDelegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.
		Foreground(styles.selected.GetForeground()).
		BorderForeground(lipgloss.Color(spotifyGreen)).
		Bold(true)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.
		Foreground(lipgloss.Color(mutedGray)).
		BorderForeground(lipgloss.Color(spotifyGreen))
	return d
}
