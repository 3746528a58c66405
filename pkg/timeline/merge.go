package timeline

import (
	"sort"

	"hubsync/pkg/models"
)

// Mode selects how incoming messages combine with the existing timeline.
type Mode string

const (
	// Replace discards the existing timeline before merging.
	Replace Mode = "replace"
	// Prepend places incoming before existing (older history page).
	Prepend Mode = "prepend"
	// Append places incoming after existing (new arrivals).
	Append Mode = "append"
)

// Merge combines two message sequences into a deduplicated timeline sorted
// ascending by timestamp. Colliding ids are shallow-merged field by field
// with the later-occurring record winning; a field the later record does
// not carry (its zero or normalize-default value) keeps the earlier value.
// The sort is stable, so equal timestamps preserve merge order, and merging
// an already-present identical message is a no-op.
func Merge(existing, incoming []models.Message, mode Mode) []models.Message {
	var combined []models.Message
	switch mode {
	case Replace:
		combined = append(combined, incoming...)
	case Prepend:
		combined = append(combined, incoming...)
		combined = append(combined, existing...)
	default:
		combined = append(combined, existing...)
		combined = append(combined, incoming...)
	}

	deduped := make([]models.Message, 0, len(combined))
	byID := make(map[string]int, len(combined))
	for _, m := range combined {
		if m.ID == "" {
			continue
		}
		if i, ok := byID[m.ID]; ok {
			deduped[i] = overlay(deduped[i], m)
			continue
		}
		byID[m.ID] = len(deduped)
		deduped = append(deduped, m)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Timestamp.Before(deduped[j].Timestamp)
	})
	return deduped
}

// overlay applies the later record on top of the earlier one. Zero values
// and normalize defaults ("Unknown" author, empty attachment list,
// "approved" moderation with no detail) count as absent and do not erase
// concrete earlier fields.
func overlay(earlier, later models.Message) models.Message {
	out := earlier

	if !later.Timestamp.IsZero() {
		out.Timestamp = later.Timestamp
	}
	if later.Text != "" {
		out.Text = later.Text
	}
	if later.Author.ID != "" {
		out.Author.ID = later.Author.ID
	}
	if later.Author.Name != "" && later.Author.Name != models.AuthorUnknown {
		out.Author.Name = later.Author.Name
	} else if out.Author.Name == "" {
		out.Author.Name = later.Author.Name
	}
	if len(later.Attachments) > 0 {
		out.Attachments = later.Attachments
	}
	if later.IsDeleted || later.DeletedAt != nil || later.DeletedBy != "" {
		out.IsDeleted = later.IsDeleted
		out.DeletedAt = later.DeletedAt
		out.DeletedBy = later.DeletedBy
	}
	if concreteModeration(later.Moderation) || out.Moderation.Status == "" {
		out.Moderation = later.Moderation
	}
	return out
}

func concreteModeration(m models.Moderation) bool {
	if m.Status != "" && m.Status != models.ModerationApproved {
		return true
	}
	return m.Note != "" || m.ModeratedAt != nil || m.ModeratedBy != ""
}
