package v1

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/creachadair/stringset"
)

type ChannelName string

const (
	Channel_X         ChannelName = "X"
	Channel_LinkedIn  ChannelName = "LinkedIn"
	Channel_Facebook  ChannelName = "Facebook"
	Channel_Instagram ChannelName = "Instagram"
	Channel_TikTok    ChannelName = "TikTok"
)

// Fan-out order is not significant; platforms are independent.
var AllChannels = []ChannelName{
	Channel_X,
	Channel_LinkedIn,
	Channel_Facebook,
	Channel_Instagram,
	Channel_TikTok,
}

type MediaFileType string

const (
	MEDIA_NONE  MediaFileType = ""
	MEDIA_IMAGE MediaFileType = "IMAGE"
	MEDIA_VIDEO MediaFileType = "VIDEO"
)

// Per-platform character ceilings, set by the remote platforms.
const (
	TEXT_MAX_X         = 4000
	TEXT_MAX_INSTAGRAM = 2200
	TEXT_MAX_FACEBOOK  = 63206
	TEXT_MAX_LINKEDIN  = 3000
)

var imageExtensions = stringset.New(".jpeg", ".jpg", ".png")
var videoExtensions = stringset.New(".mp4")

// PlatformState is the publish state of one channel on one attempt row.
// Enabled flips true->false exactly once: either the channel succeeded
// (ResultLink set) or its retry moved to a clone row.
type PlatformState struct {
	Enabled    bool
	ResultLink string
	LastError  string
	RetryCount int
}

type TikTokPrivacyLevel string

const (
	TIKTOK_PRIVACY_FOLLOWERS      TikTokPrivacyLevel = "FOLLOWER_OF_CREATOR"
	TIKTOK_PRIVACY_PUBLIC         TikTokPrivacyLevel = "PUBLIC_TO_EVERYONE"
	TIKTOK_PRIVACY_MUTUAL_FRIENDS TikTokPrivacyLevel = "MUTUAL_FOLLOW_FRIENDS"
	TIKTOK_PRIVACY_SELF_ONLY      TikTokPrivacyLevel = "SELF_ONLY"
)

// TikTokOptions is an opaque sidecar on the attempt row; only populated
// when the post targets TikTok.
type TikTokOptions struct {
	Nickname                string
	MaxVideoPostDurationSec int
	PrivacyLevel            TikTokPrivacyLevel
	AllowComment            bool
	AllowDuet               bool
	AllowStitch             bool
	DiscloseVideoContent    bool
	YourBrand               bool
	BrandedContent          bool
	AIGenerated             bool
}

// ScheduledPost is one publish attempt covering all platforms at once.
// Retries are whole-row clones narrowed to the failing channel, keeping
// the storage schema flat.
type ScheduledPost struct {
	// Required
	PostID              string // Also system correlation ID.
	AccountID           string
	CreatedAtEpochMilli int64

	ScheduledAtEpochMilli int64  // UTC instant the post is due.
	PostTimezone          string // IANA zone name the user selected the time in.

	Description    string
	MediaLookupKey string // S3 key; empty when text-only.
	MediaFileType  MediaFileType

	ProcessImage   bool // Run the normalizer before publishing.
	ImageProcessed bool

	Platforms map[string]PlatformState

	TikTok TikTokOptions
}

func (p *ScheduledPost) PlatformState(channel ChannelName) PlatformState {
	return p.Platforms[string(channel)]
}

func (p *ScheduledPost) SetPlatformState(channel ChannelName, state PlatformState) {
	if p.Platforms == nil {
		p.Platforms = map[string]PlatformState{}
	}
	p.Platforms[string(channel)] = state
}

func (p *ScheduledPost) IsEnabled(channel ChannelName) bool {
	return p.Platforms[string(channel)].Enabled
}

func (p *ScheduledPost) EnabledChannels() []ChannelName {
	result := []ChannelName{}
	for _, c := range AllChannels {
		if p.IsEnabled(c) {
			result = append(result, c)
		}
	}
	return result
}

func (p *ScheduledPost) HasImage() bool {
	return p.MediaFileType == MEDIA_IMAGE
}

func (p *ScheduledPost) HasVideo() bool {
	return p.MediaFileType == MEDIA_VIDEO
}

func (p *ScheduledPost) MediaExtension() string {
	return strings.ToLower(filepath.Ext(p.MediaLookupKey))
}

// DeriveMediaFileType sets MediaFileType from the media key extension.
func (p *ScheduledPost) DeriveMediaFileType() error {
	if p.MediaLookupKey == "" {
		p.MediaFileType = MEDIA_NONE
		return nil
	}
	ext := p.MediaExtension()
	switch {
	case imageExtensions.Contains(ext):
		p.MediaFileType = MEDIA_IMAGE
	case videoExtensions.Contains(ext):
		p.MediaFileType = MEDIA_VIDEO
	default:
		return fmt.Errorf("unsupported file type %s, only JPEG, PNG images and MP4 videos are allowed", ext)
	}
	return nil
}

// Validate checks the row invariants prior to persisting. Validation is an
// explicit step, separate from the DAL write.
func (p *ScheduledPost) Validate() error {
	if len(p.EnabledChannels()) == 0 {
		return fmt.Errorf("at least one platform must be selected for posting")
	}
	if p.ScheduledAtEpochMilli <= 0 {
		return fmt.Errorf("the scheduled time must be set")
	}
	if _, err := time.LoadLocation(p.PostTimezone); err != nil || p.PostTimezone == "" {
		return fmt.Errorf("invalid timezone: %s", p.PostTimezone)
	}

	if err := p.DeriveMediaFileType(); err != nil {
		return err
	}

	textLen := len([]rune(p.Description))

	if p.IsEnabled(Channel_X) {
		if textLen > TEXT_MAX_X {
			return fmt.Errorf("maximum length of a X post is %d", TEXT_MAX_X)
		}
		if p.MediaLookupKey != "" && !imageExtensions.Contains(p.MediaExtension()) {
			return fmt.Errorf("unsupported file type, only JPEG, PNG images can be uploaded to X")
		}
	}

	if p.IsEnabled(Channel_Instagram) {
		if textLen > TEXT_MAX_INSTAGRAM {
			return fmt.Errorf("maximum length of a Instagram post is %d", TEXT_MAX_INSTAGRAM)
		}
		if p.MediaLookupKey == "" && !p.ProcessImage {
			return fmt.Errorf("an image or a video is required for Instagram")
		}
		if p.MediaLookupKey == "" && p.ProcessImage {
			p.MediaFileType = MEDIA_IMAGE
		}
	}

	if p.IsEnabled(Channel_Facebook) && textLen > TEXT_MAX_FACEBOOK {
		return fmt.Errorf("maximum length of a Facebook post is %d", TEXT_MAX_FACEBOOK)
	}

	if p.IsEnabled(Channel_LinkedIn) {
		if textLen > TEXT_MAX_LINKEDIN {
			return fmt.Errorf("maximum length of a LinkedIn post is %d", TEXT_MAX_LINKEDIN)
		}
		if p.MediaLookupKey != "" && !imageExtensions.Contains(p.MediaExtension()) {
			return fmt.Errorf("unsupported file type, only JPEG, PNG images can be uploaded to LinkedIn")
		}
	}

	if p.IsEnabled(Channel_TikTok) {
		if p.MediaLookupKey == "" {
			return fmt.Errorf("a .mp4 video in reel format is needed for TikTok")
		}
		if !videoExtensions.Contains(p.MediaExtension()) {
			return fmt.Errorf("unsupported file type, only .mp4 videos can be uploaded to TikTok")
		}
	}

	return nil
}

func GetChannelNameFromString(name string) (ChannelName, error) {
	for _, c := range AllChannels {
		if strings.EqualFold(name, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unable to find matching channel from string %s", name)
}
