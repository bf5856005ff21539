package v1

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPost() ScheduledPost {
	post := ScheduledPost{
		PostID:                "post-1",
		AccountID:             "account-1",
		CreatedAtEpochMilli:   1700000000000,
		ScheduledAtEpochMilli: 1700000600000,
		PostTimezone:          "Europe/Berlin",
		Description:           "hello world",
	}
	post.SetPlatformState(Channel_X, PlatformState{Enabled: true})
	return post
}

func TestValidateRequiresPlatform(t *testing.T) {
	post := validPost()
	post.Platforms = nil
	err := post.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least one platform")
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	post := validPost()
	post.PostTimezone = "Mars/Olympus_Mons"
	assert.Error(t, post.Validate())
}

func TestValidateAcceptsImageForImagePlatforms(t *testing.T) {
	post := validPost()
	post.MediaLookupKey = "uploads/account-1/cat.png"
	post.SetPlatformState(Channel_Instagram, PlatformState{Enabled: true})
	post.SetPlatformState(Channel_LinkedIn, PlatformState{Enabled: true})
	assert.NoError(t, post.Validate())
	assert.Equal(t, MEDIA_IMAGE, post.MediaFileType)
}

func TestValidateRejectsVideoForLinkedIn(t *testing.T) {
	post := validPost()
	post.MediaLookupKey = "uploads/account-1/clip.mp4"
	post.SetPlatformState(Channel_LinkedIn, PlatformState{Enabled: true})
	err := post.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "LinkedIn")
}

func TestValidateTikTokNeedsVideo(t *testing.T) {
	post := validPost()
	post.Platforms = nil
	post.SetPlatformState(Channel_TikTok, PlatformState{Enabled: true})
	assert.Error(t, post.Validate())

	post.MediaLookupKey = "uploads/account-1/clip.mp4"
	assert.NoError(t, post.Validate())
	assert.Equal(t, MEDIA_VIDEO, post.MediaFileType)
}

func TestValidateInstagramNeedsMediaOrProcessing(t *testing.T) {
	post := validPost()
	post.Platforms = nil
	post.SetPlatformState(Channel_Instagram, PlatformState{Enabled: true})
	assert.Error(t, post.Validate())

	post.ProcessImage = true
	assert.NoError(t, post.Validate())
	assert.Equal(t, MEDIA_IMAGE, post.MediaFileType)
}

func TestValidateTextCeilings(t *testing.T) {
	post := validPost()
	post.Description = strings.Repeat("a", TEXT_MAX_X+1)
	assert.Error(t, post.Validate())

	post.Description = strings.Repeat("a", TEXT_MAX_X)
	assert.NoError(t, post.Validate())
}

func TestDeriveMediaFileTypeRejectsUnknownExtension(t *testing.T) {
	post := validPost()
	post.MediaLookupKey = "uploads/account-1/notes.pdf"
	assert.Error(t, post.DeriveMediaFileType())
}

func TestEnabledChannelsStableOrder(t *testing.T) {
	post := validPost()
	post.SetPlatformState(Channel_TikTok, PlatformState{Enabled: true})
	post.SetPlatformState(Channel_Facebook, PlatformState{Enabled: true})
	assert.Equal(t, []ChannelName{Channel_X, Channel_Facebook, Channel_TikTok}, post.EnabledChannels())
}

func TestGetChannelNameFromString(t *testing.T) {
	channel, err := GetChannelNameFromString("tiktok")
	assert.NoError(t, err)
	assert.Equal(t, Channel_TikTok, channel)

	_, err = GetChannelNameFromString("myspace")
	assert.Error(t, err)
}
