package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/djai/internal/shared"
)

// MaxDescriptionLength is the catalog's limit on playlist descriptions, in characters.
const MaxDescriptionLength = 300

// SeedEntries tags each seed with [SeedReason], keeping seed order.
func SeedEntries(seeds []Track) []ResolvedEntry {
	entries := make([]ResolvedEntry, len(seeds))
	for i, s := range seeds {
		entries[i] = ResolvedEntry{Track: s, Reason: SeedReason}
	}
	return entries
}

// Reorder moves the entry at from to position to and returns the new list.
//
// The input slice is not modified.
func Reorder(entries []ResolvedEntry, from, to int) ([]ResolvedEntry, error) {
	if from < 0 || from >= len(entries) || to < 0 || to >= len(entries) {
		return nil, fmt.Errorf("%w: reorder %d -> %d out of range for %d entries",
			shared.ErrInvalidArgument, from, to, len(entries))
	}

	out := make([]ResolvedEntry, 0, len(entries))
	moved := entries[from]
	for i, e := range entries {
		if i != from {
			out = append(out, e)
		}
	}

	out = append(out, ResolvedEntry{})
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out, nil
}

// RemoveTrack drops the first entry whose track id matches. An absent id returns the list unchanged.
func RemoveTrack(entries []ResolvedEntry, trackID string) []ResolvedEntry {
	out := make([]ResolvedEntry, 0, len(entries))
	removed := false
	for _, e := range entries {
		if !removed && e.Track.ID == trackID {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out
}

// TrackURIs returns the playable URIs in list order.
func TrackURIs(entries []ResolvedEntry) []string {
	uris := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Track.URI != "" {
			uris = append(uris, e.Track.URI)
		}
	}
	return uris
}

// DescribePlaylist derives a playlist description from the seed names and prompt.
func DescribePlaylist(seeds []Track, prompt string) string {
	var b strings.Builder
	b.WriteString("AI-generated playlist")

	if len(seeds) > 0 {
		names := make([]string, 0, len(seeds))
		for _, s := range seeds {
			if artist := s.PrimaryArtist(); artist != "" {
				names = append(names, fmt.Sprintf("%s by %s", s.Title, artist))
			} else {
				names = append(names, s.Title)
			}
		}
		b.WriteString(" inspired by ")
		b.WriteString(strings.Join(names, ", "))
	}

	if p := strings.TrimSpace(prompt); p != "" {
		b.WriteString(". Mood: ")
		b.WriteString(p)
	}

	b.WriteString(BrandSuffix)
	return truncateRunes(b.String(), MaxDescriptionLength)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
