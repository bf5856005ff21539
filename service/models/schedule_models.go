package models

// SchedulePostRequest is the wire form of a schedule-create call. The
// scheduled time arrives as the user's wall-clock time plus the IANA
// zone they picked it in.
type SchedulePostRequest struct {
	AccountID      string   `json:"accountId"`
	Description    string   `json:"description"`
	MediaLookupKey string   `json:"mediaLookupKey"`
	ScheduledAt    string   `json:"scheduledAt"` // 2006-01-02T15:04 wall time
	Timezone       string   `json:"timezone"`
	Platforms      []string `json:"platforms"`
	ProcessImage   bool     `json:"processImage"`

	TikTok *TikTokOptionsRequest `json:"tiktok,omitempty"`
}

type TikTokOptionsRequest struct {
	Nickname             string `json:"nickname"`
	PrivacyLevel         string `json:"privacyLevel"`
	AllowComment         bool   `json:"allowComment"`
	AllowDuet            bool   `json:"allowDuet"`
	AllowStitch          bool   `json:"allowStitch"`
	DiscloseVideoContent bool   `json:"discloseVideoContent"`
	YourBrand            bool   `json:"yourBrand"`
	BrandedContent       bool   `json:"brandedContent"`
	AIGenerated          bool   `json:"aiGenerated"`
}

type SchedulePostResponse struct {
	PostID      string `json:"postId"`
	ScheduledAt int64  `json:"scheduledAtEpochMilli"`
}
