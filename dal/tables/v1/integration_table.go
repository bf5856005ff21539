package v1

import "time"

// Integration binds one account to one platform: the long-lived credential
// plus the profile identity shown on the integrations page. Created by the
// OAuth callback flow, read-only during publish.
type Integration struct {
	// Required
	AccountID string
	Platform  ChannelName

	// Credential
	UserID       string // person URN, page id, open_id, ... per platform
	AccessToken  string
	RefreshToken string

	AccessExpireEpochMilli  int64
	RefreshExpireEpochMilli int64

	// Profile identity
	Username  string
	AvatarURL string

	CreatedAtEpochMilli int64
}

func (i *Integration) IsAccessExpired(now time.Time) bool {
	return i.AccessExpireEpochMilli > 0 && i.AccessExpireEpochMilli < now.UnixMilli()
}
