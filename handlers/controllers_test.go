package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tables "github.com/imposting/publish-core/dal/tables/v1"
	requestModels "github.com/imposting/publish-core/service/models"
)

func scheduleRequest() requestModels.SchedulePostRequest {
	return requestModels.SchedulePostRequest{
		AccountID:   "account-1",
		Description: "hello world",
		ScheduledAt: time.Now().Add(2 * time.Hour).Format(wallClockLayout),
		Timezone:    "UTC",
		Platforms:   []string{"x", "facebook"},
	}
}

func TestBuildScheduledPostEnablesRequestedPlatforms(t *testing.T) {
	post, err := buildScheduledPost(scheduleRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, post.PostID)
	assert.Equal(t, []tables.ChannelName{tables.Channel_X, tables.Channel_Facebook}, post.EnabledChannels())
}

func TestBuildScheduledPostRejectsUnknownPlatform(t *testing.T) {
	payload := scheduleRequest()
	payload.Platforms = []string{"myspace"}
	_, err := buildScheduledPost(payload)
	assert.Error(t, err)
}

func TestBuildScheduledPostValidates(t *testing.T) {
	payload := scheduleRequest()
	payload.Platforms = []string{"tiktok"}
	_, err := buildScheduledPost(payload)
	assert.Error(t, err)
}

func TestBuildScheduledPostMapsTikTokOptions(t *testing.T) {
	payload := scheduleRequest()
	payload.Platforms = []string{"tiktok"}
	payload.MediaLookupKey = "uploads/account-1/clip.mp4"
	payload.TikTok = &requestModels.TikTokOptionsRequest{
		Nickname:     "someone",
		PrivacyLevel: string(tables.TIKTOK_PRIVACY_PUBLIC),
		AllowComment: true,
	}
	post, err := buildScheduledPost(payload)
	require.NoError(t, err)
	assert.Equal(t, tables.TIKTOK_PRIVACY_PUBLIC, post.TikTok.PrivacyLevel)
	assert.True(t, post.TikTok.AllowComment)
	assert.Equal(t, tables.MEDIA_VIDEO, post.MediaFileType)
}

func TestResolveScheduledAtKeepsFutureTimes(t *testing.T) {
	future := time.Now().Add(3 * time.Hour).Truncate(time.Minute)
	got, err := resolveScheduledAt(future.Format(wallClockLayout), "Local")
	require.NoError(t, err)
	assert.Equal(t, future.UnixMilli(), got)
}

func TestResolveScheduledAtBumpsPastTimes(t *testing.T) {
	past := time.Now().Add(-1 * time.Hour)
	got, err := resolveScheduledAt(past.Format(wallClockLayout), "Local")
	require.NoError(t, err)

	earliest := time.Now().Add((minScheduleLeadMinutes - 1) * time.Minute)
	assert.Greater(t, got, earliest.UnixMilli())
}

func TestResolveScheduledAtRejectsBadInput(t *testing.T) {
	_, err := resolveScheduledAt("2026-01-01T10:00", "Mars/Olympus_Mons")
	assert.Error(t, err)

	_, err = resolveScheduledAt("tomorrow at noon", "UTC")
	assert.Error(t, err)
}
