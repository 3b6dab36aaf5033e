package models

import (
	"time"

	"mubeapp_server/utils"
)

// UserProfile holds the subset of the user document the Matchpoint engine
// reads and writes: display data for previews, the daily swipe quota state,
// and the sent-interaction counters maintained by the stats aggregator.
type UserProfile struct {
	UserID            string    `json:"userId"`
	Name              string    `json:"name"`
	ArtisticName      string    `json:"artisticName,omitempty"`
	Photo             string    `json:"photo,omitempty"`
	Bio               string    `json:"bio,omitempty"`
	Instruments       []string  `json:"instruments,omitempty"`
	DailySwipeCount   int       `json:"dailySwipeCount"`
	LastSwipeDate     time.Time `json:"lastSwipeDate,omitempty"`
	TotalLikesSent    int       `json:"totalLikesSent"`
	TotalDislikesSent int       `json:"totalDislikesSent"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// DisplayName prefers the artistic name musicians go by on stage.
func (p *UserProfile) DisplayName() string {
	if p.ArtisticName != "" {
		return p.ArtisticName
	}
	if p.Name != "" {
		return p.Name
	}
	return "Usuário"
}

// Document flattens the profile for the store.
func (p *UserProfile) Document() map[string]interface{} {
	return map[string]interface{}{
		"user_id":             p.UserID,
		"nome":                p.Name,
		"nome_artistico":      p.ArtisticName,
		"foto":                p.Photo,
		"bio":                 p.Bio,
		"instruments":         p.Instruments,
		"daily_swipes_count":  p.DailySwipeCount,
		"last_swipe_date":     p.LastSwipeDate,
		"total_likes_sent":    p.TotalLikesSent,
		"total_dislikes_sent": p.TotalDislikesSent,
		"created_at":          p.CreatedAt,
		"updated_at":          p.UpdatedAt,
	}
}

// UserProfileFromDocument rebuilds a profile from a store document.
func UserProfileFromDocument(id string, doc map[string]interface{}) *UserProfile {
	return &UserProfile{
		UserID:            id,
		Name:              utils.ExtractString(doc, "nome"),
		ArtisticName:      utils.ExtractString(doc, "nome_artistico"),
		Photo:             utils.ExtractString(doc, "foto"),
		Bio:               utils.ExtractString(doc, "bio"),
		Instruments:       utils.ExtractStringSlice(doc, "instruments"),
		DailySwipeCount:   utils.ExtractInt(doc, "daily_swipes_count"),
		LastSwipeDate:     utils.ExtractTime(doc, "last_swipe_date"),
		TotalLikesSent:    utils.ExtractInt(doc, "total_likes_sent"),
		TotalDislikesSent: utils.ExtractInt(doc, "total_dislikes_sent"),
		CreatedAt:         utils.ExtractTime(doc, "created_at"),
		UpdatedAt:         utils.ExtractTime(doc, "updated_at"),
	}
}
