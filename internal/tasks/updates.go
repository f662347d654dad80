package tasks

import (
	"fmt"

	"github.com/desertthunder/djai/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Recommend Phase = iota
	SearchTracks
	Generated
	CreatePlaylist
	AddTracks
	Saved
)

func (p Phase) String() string {
	switch p {
	case Recommend:
		return "recommend"
	case SearchTracks:
		return "search_tracks"
	case Generated:
		return "generated"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case Saved:
		return "saved"
	default:
		return ""
	}
}

func recommendUpdate(req models.GenerationRequest) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recommend,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Asking for %d recommendations from %d seed track(s)...", req.NumberOfTracks, len(req.SeedTracks)),
	}
}

func searchTracksUpdate(step, total int, s *models.Suggestion) ProgressUpdate {
	if s == nil {
		return ProgressUpdate{
			Phase:   SearchTracks,
			Step:    step,
			Total:   total,
			Message: "Searching Spotify for recommended tracks...",
		}
	}
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, s.Artist, s.Title),
	}
}

func generatedUpdate(result *models.GenerationResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Generated,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Generated %s (%d tracks)", result.PlaylistName, len(result.Entries)),
		Data:    result,
	}
}

func createPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Creating playlist %s on Spotify...", name),
	}
}

func addTracksUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Adding %d tracks...", count),
	}
}

func savedUpdate(pl *models.PlaylistRef) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Saved,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}
