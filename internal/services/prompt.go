package services

import (
	"strings"
	"text/template"

	"github.com/desertthunder/djai/internal/models"
)

const systemPrompt = `You are a professional DJ and music curator who builds engaging, thematic playlists. You:
1. Recommend songs based on the seed tracks and any extra context
2. Name the playlist so the name captures the theme, mood and flow of every track, seeds and recommendations alike
3. Answer only with the JSON object described by the user`

var userPromptTmpl = template.Must(template.New("user").Parse(`Seed tracks:
{{- range .Seeds }}
- "{{ .Title }}" by {{ .PrimaryArtist }}
{{- end }}
{{ if .Prompt }}
Additional context: {{ .Prompt }}
{{ end }}
Recommend {{ .Count }} songs that:
1. Match the style and energy of the seed tracks
2. Mix well-known and lesser-known tracks
3. Flow together as one listening session
4. Really exist (never invent a song)

For each song give its name, its artist and a short reason (10 words at most) it belongs.

Then look at the seeds and the recommendations together and name the playlist. The name should
reflect their shared mood, era, genre or theme, be creative and memorable, and fit every track.

Respond with a JSON object of exactly this shape:
{
  "playlistName": "Playlist Name",
  "recommendations": [
    {"name": "Song Name", "artist": "Artist Name", "reason": "Short reason"}
  ]
}
Include no other properties. The songs must be under the "recommendations" key.`))

type promptData struct {
	Seeds  []models.Track
	Prompt string
	Count  int
}

// BuildUserPrompt renders the user message for a generation request.
func BuildUserPrompt(req models.GenerationRequest) (string, error) {
	var b strings.Builder
	err := userPromptTmpl.Execute(&b, promptData{
		Seeds:  req.SeedTracks,
		Prompt: strings.TrimSpace(req.Prompt),
		Count:  req.NumberOfTracks,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
