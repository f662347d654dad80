package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	th "github.com/desertthunder/djai/internal/testing"
)

func sampleSession() *models.GenerationSession {
	seed := th.Track("s1", "Midnight City", "M83")
	rec := th.Track("r1", "Kids", "MGMT")
	rec.DurationMS = 302000

	return &models.GenerationSession{
		ID:             "hist-1",
		CreatedAt:      time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		SeedTracks:     []models.Track{seed},
		Prompt:         "night drive",
		RequestedCount: 10,
		Result: models.GenerationResult{
			PlaylistName: "Neon Drive" + models.BrandSuffix,
			Entries: []models.ResolvedEntry{
				{Track: seed, Reason: models.SeedReason},
				{Track: rec, Reason: "synth hooks, big chorus"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", Text, false},
		{"txt", Text, false},
		{"MD", Markdown, false},
		{"markdown", Markdown, false},
		{"csv", CSV, false},
		{"json", JSON, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{3 * time.Minute, "3:00"},
		{5*time.Minute + 2*time.Second, "5:02"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		session := sampleSession()

		data, err := ExportToCSV(&session.Result)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Position,ID,Title,Artist,Album,Duration,URI,Reason\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "2,r1,Kids,MGMT,Kids (Album),5:02,spotify:track:r1") {
			t.Errorf("CSV missing track row, got: %s", output)
		}
		if !strings.Contains(output, `"synth hooks, big chorus"`) {
			t.Errorf("CSV should quote reasons containing commas, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		session := sampleSession()

		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(session, "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Neon Drive" + models.BrandSuffix,
				"**Prompt**: night drive",
				"**Tracks**: 2",
				"## Seeds",
				"- M83 - Midnight City",
				"2. MGMT - Kids (Kids (Album)) [5:02]: _synth hooks, big chorus_",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("Markdown should not reference a cover")
			}
		})

		t.Run("with cover image and saved playlist", func(t *testing.T) {
			saved := *session
			saved.Result.Playlist = &models.PlaylistRef{
				ID:           "p1",
				Name:         "Neon Drive",
				ExternalURLs: models.ExternalURLs{Spotify: "https://open.spotify.com/playlist/p1"},
			}

			data, _ := ExportToMarkdown(&saved, "cover.jpg")
			output := string(data)
			if !strings.Contains(output, "![Cover](cover.jpg)") {
				t.Error("Markdown missing cover")
			}
			if !strings.Contains(output, "(https://open.spotify.com/playlist/p1)") {
				t.Error("Markdown missing playlist link")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleSession())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Playlist: Neon Drive") {
			t.Errorf("text missing name, got: %s", output)
		}
		if !strings.Contains(output, "1. M83 - Midnight City\n2. MGMT - Kids\n") {
			t.Errorf("text missing ordered tracks, got: %s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleSession())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		for _, key := range []string{"id", "timestamp", "seedTracks", "prompt", "numberOfTracks", "generatedPlaylist"} {
			if _, ok := decoded[key]; !ok {
				t.Errorf("JSON missing %q", key)
			}
		}
	})

	t.Run("Render", func(t *testing.T) {
		for _, f := range Formats {
			data, err := Render(f, sampleSession())
			if err != nil || len(data) == 0 {
				t.Errorf("Render(%s) failed: %v", f, err)
			}
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("DownloadImage with empty URL should return error")
		}
	})

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("jpeg"))
		}))
		defer srv.Close()

		data, err := DownloadImage(srv.URL)
		if err != nil || string(data) != "jpeg" {
			t.Errorf("unexpected download %q %v", data, err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		if _, err := DownloadImage(srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")

		written, err := WriteExport(CSV, sampleSession(), path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != path {
			t.Errorf("expected %s, got %s", path, written)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "Midnight City") {
			t.Errorf("unexpected content %s", content)
		}
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("jpeg"))
		}))
		defer srv.Close()

		session := sampleSession()
		session.Result.Entries[0].Track.Album.Images = []models.Image{{URL: srv.URL + "/cover"}}
		dir := filepath.Join(t.TempDir(), "export")

		result, err := WriteMarkdownExport(session, dir, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}

		readme := filepath.Join(dir, "README.md")
		th.AssertFileExists(t, readme)
		th.AssertFileExists(t, result.CoverImage)
		if len(result.Files) != 2 {
			t.Errorf("expected 2 files, got %v", result.Files)
		}
		if !strings.Contains(th.MustReadFile(t, readme), "![Cover](cover.jpg)") {
			t.Error("README should reference the downloaded cover")
		}
	})

	t.Run("WriteMarkdownExport with failed cover", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		session := sampleSession()
		session.Result.Entries[0].Track.Album.Images = []models.Image{{URL: srv.URL}}
		var warn bytes.Buffer

		result, err := WriteMarkdownExport(session, filepath.Join(t.TempDir(), "export"), &warn)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}
		if result.CoverImage != "" || !strings.Contains(warn.String(), "Warning") {
			t.Errorf("expected a warning and no cover, got %+v %q", result, warn.String())
		}
	})
}
