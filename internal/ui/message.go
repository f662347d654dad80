package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgSaveComplete
)

type saveResult struct {
	playlist *models.PlaylistRef
	err      error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// saveCompleteMsg is the constructor for [MsgSaveComplete]
func saveCompleteMsg(playlist *models.PlaylistRef, err error) Msg {
	return Msg{kind: MsgSaveComplete, data: saveResult{playlist, err}}
}
