package reddit

import (
	"encoding/json"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

type listing struct {
	Data struct {
		Children []struct {
			Kind string   `json:"kind"`
			Data linkData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// linkData uses pointers so absent fields are distinguishable from zero values.
type linkData struct {
	Name          *string          `json:"name"`
	Title         *string          `json:"title"`
	Selftext      *string          `json:"selftext"`
	URL           *string          `json:"url"`
	Permalink     *string          `json:"permalink"`
	LinkFlairText *string          `json:"link_flair_text"`
	Stickied      *bool            `json:"stickied"`
	Over18        *bool            `json:"over_18"`
	Locked        *bool            `json:"locked"`
	IsVideo       *bool            `json:"is_video"`
	PollData      *json.RawMessage `json:"poll_data"`
}

func (d linkData) sourceItem() mirror.SourceItem {
	var missing []string

	str := func(v *string, field string) string {
		if v == nil {
			missing = append(missing, field)
			return ""
		}
		return *v
	}
	flag := func(v *bool, field string) bool {
		if v == nil {
			missing = append(missing, field)
			return false
		}
		return *v
	}

	item := mirror.SourceItem{
		ID:        str(d.Name, "name"),
		Title:     str(d.Title, "title"),
		Body:      str(d.Selftext, "selftext"),
		URL:       str(d.URL, "url"),
		Permalink: str(d.Permalink, "permalink"),
		Pinned:    flag(d.Stickied, "stickied"),
		Adult:     flag(d.Over18, "over_18"),
		Locked:    flag(d.Locked, "locked"),
		Video:     flag(d.IsVideo, "is_video"),
		Poll:      d.PollData != nil,
	}

	// Unflaired posts send null.
	if d.LinkFlairText != nil {
		item.Flair = *d.LinkFlairText
	}

	item.Missing = missing
	return item
}
