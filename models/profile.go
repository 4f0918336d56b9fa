package models

import "time"

// Profile is a local viewing profile. Watch history, favorites, watchlists
// and the up-next queue are all scoped to one profile.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AvatarHue int       `json:"avatarHue"`
	IsKids    bool      `json:"isKids"`
	CreatedAt time.Time `json:"createdAt"`
}

// Favorite marks one content item as a favorite of a profile.
type Favorite struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profileId"`
	MediaType MediaType `json:"mediaType"`
	MediaID   int64     `json:"mediaId"`
	AddedAt   time.Time `json:"addedAt"`
}
