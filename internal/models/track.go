package models

import (
	"strings"
	"time"
)

// Track is a catalog track. Field names follow the Spotify Web API so responses decode without a mapping step.
type Track struct {
	ID           string       `json:"id"`
	Title        string       `json:"name"`
	Artists      []Artist     `json:"artists"`
	Album        Album        `json:"album"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	DurationMS   int          `json:"duration_ms"`
	Explicit     bool         `json:"explicit"`
	URI          string       `json:"uri"`
}

type Artist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Album struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name"`
	Images []Image `json:"images,omitempty"`
}

type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

type ExternalURLs struct {
	Spotify string `json:"spotify,omitempty"`
}

// ArtistNames joins artist names with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// PrimaryArtist returns the first credited artist, or "" when none is listed.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// ArtURL returns the first (largest) album image.
func (t Track) ArtURL() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// PlaylistRef describes a playlist created in the catalog.
type PlaylistRef struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri,omitempty"`
}

// PlaylistDetails is the body of a playlist-create call.
type PlaylistDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// CatalogUser is the authenticated catalog account.
type CatalogUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}
