// Package ui implements the generated-playlist review screen using bubbletea's Elm architecture.
//
// The review screen has four views:
//  1. [ReviewView] : the generated list; move entries with K/J, remove with d
//  2. [ConfirmView] : confirm saving to Spotify
//  3. [SavingView] : progress while the playlist is created and populated
//  4. [ResultView] : the saved playlist's link, or the error
//
// Every edit is handed to the model's persist callback so the CLI's client state
// always holds the list as it appears on screen. Saving runs [tasks.Generator.Save]
// in a goroutine and streams its progress updates back through a channel.
package ui
