// package formatter renders generations and history entries as Markdown, plain text, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// Formats lists the accepted --format values.
var Formats = []Format{Text, Markdown, CSV, JSON}

// ParseFormat accepts a format name or a common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (want one of %v)", shared.ErrInvalidArgument, s, Formats)
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return ".md"
	case CSV:
		return ".csv"
	case JSON:
		return ".json"
	default:
		return ".txt"
	}
}

// Render renders a history entry in the given format.
func Render(f Format, session *models.GenerationSession) ([]byte, error) {
	switch f {
	case Markdown:
		return ExportToMarkdown(session, "")
	case CSV:
		return ExportToCSV(&session.Result)
	case JSON:
		return ExportToJSON(session)
	default:
		return ExportToText(session)
	}
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// ExportToCSV converts a generation to CSV with columns: Position, ID, Title, Artist, Album, Duration, URI, Reason
func ExportToCSV(result *models.GenerationResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artist", "Album", "Duration", "URI", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, entry := range result.Entries {
		track := entry.Track
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Title,
			track.ArtistNames(),
			track.Album.Name,
			FormatDuration(track.Duration()),
			track.URI,
			entry.Reason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a history entry to Markdown with an optional cover image
func ExportToMarkdown(session *models.GenerationSession, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer
	result := session.Result

	fmt.Fprintf(&buf, "# %s\n\n", result.PlaylistName)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if !session.CreatedAt.IsZero() {
		fmt.Fprintf(&buf, "**Generated**: %s\n", session.CreatedAt.Format(time.RFC1123))
	}
	if session.Prompt != "" {
		fmt.Fprintf(&buf, "**Prompt**: %s\n", session.Prompt)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(result.Entries))
	if result.Playlist != nil && result.Playlist.ExternalURLs.Spotify != "" {
		fmt.Fprintf(&buf, "**Spotify**: [%s](%s)\n", result.Playlist.Name, result.Playlist.ExternalURLs.Spotify)
	}
	buf.WriteString("\n")

	if len(session.SeedTracks) > 0 {
		buf.WriteString("## Seeds\n\n")
		for _, seed := range session.SeedTracks {
			fmt.Fprintf(&buf, "- %s - %s\n", seed.ArtistNames(), seed.Title)
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	for i, entry := range result.Entries {
		track := entry.Track
		albumPart := ""
		if track.Album.Name != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]", i+1, track.ArtistNames(), track.Title, albumPart, FormatDuration(track.Duration()))
		if entry.Reason != "" {
			fmt.Fprintf(&buf, ": _%s_", entry.Reason)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a history entry to plain text
func ExportToText(session *models.GenerationSession) ([]byte, error) {
	var buf bytes.Buffer
	result := session.Result

	fmt.Fprintf(&buf, "Playlist: %s\n", result.PlaylistName)
	if session.Prompt != "" {
		fmt.Fprintf(&buf, "Prompt: %s\n", session.Prompt)
	}
	if result.Playlist != nil {
		fmt.Fprintf(&buf, "Saved: %s\n", result.Playlist.ExternalURLs.Spotify)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(result.Entries))

	for i, entry := range result.Entries {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, entry.Track.ArtistNames(), entry.Track.Title)
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders v as indented JSON.
func ExportToJSON(v any) ([]byte, error) {
	return shared.MarshalJSON(v, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport writes a history entry to {dir}/README.md.
//
// Directory name defaults to the entry ID. When the first track has album art it is
// downloaded to {dir}/cover.jpg; a failed download only produces a warning on warn.
func WriteMarkdownExport(session *models.GenerationSession, outputDir string, warn io.Writer) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = session.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL := coverURL(session); imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(warn, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(warn, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(session, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

func coverURL(session *models.GenerationSession) string {
	for _, entry := range session.Result.Entries {
		if u := entry.Track.ArtURL(); u != "" {
			return u
		}
	}
	return ""
}

// WriteExport renders a history entry and writes it to path.
//
// Defaults to {session.ID}{ext} as the filename.
func WriteExport(f Format, session *models.GenerationSession, path string) (string, error) {
	if path == "" {
		path = session.ID + f.Extension()
	}

	data, err := Render(f, session)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", f, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}

	return path, nil
}
