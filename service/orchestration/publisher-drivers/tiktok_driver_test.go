package publisherdrivers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tables "github.com/imposting/publish-core/dal/tables/v1"
)

func TestMergeCreatorInfoAppliesPlatformRestrictions(t *testing.T) {
	opts := tables.TikTokOptions{
		PrivacyLevel: tables.TIKTOK_PRIVACY_PUBLIC,
		AllowComment: true,
		AllowDuet:    true,
		AllowStitch:  true,
	}
	info := CreatorInfo{
		CreatorNickname:         "someone",
		MaxVideoPostDurationSec: 600,
		CommentDisabled:         true,
		PrivacyLevelOptions:     []string{string(tables.TIKTOK_PRIVACY_SELF_ONLY)},
	}

	merged := MergeCreatorInfo(opts, info)
	assert.Equal(t, "someone", merged.Nickname)
	assert.Equal(t, 600, merged.MaxVideoPostDurationSec)
	assert.False(t, merged.AllowComment)
	assert.True(t, merged.AllowDuet)
	assert.True(t, merged.AllowStitch)
	assert.Equal(t, tables.TIKTOK_PRIVACY_SELF_ONLY, merged.PrivacyLevel)
}

func TestMergeCreatorInfoKeepsAllowedPrivacy(t *testing.T) {
	opts := tables.TikTokOptions{Nickname: "kept", PrivacyLevel: tables.TIKTOK_PRIVACY_PUBLIC}
	info := CreatorInfo{
		CreatorNickname: "ignored",
		PrivacyLevelOptions: []string{
			string(tables.TIKTOK_PRIVACY_PUBLIC),
			string(tables.TIKTOK_PRIVACY_SELF_ONLY),
		},
	}

	merged := MergeCreatorInfo(opts, info)
	assert.Equal(t, "kept", merged.Nickname)
	assert.Equal(t, tables.TIKTOK_PRIVACY_PUBLIC, merged.PrivacyLevel)
}

func TestInitRequestPayloadGatesBrandToggles(t *testing.T) {
	cmd := PublishCommand{
		Text:     "hi",
		MediaURL: "https://cdn.example.com/clip.mp4",
		TikTok:   tables.TikTokOptions{BrandedContent: true, YourBrand: true},
	}

	postInfo := initRequestPayload(cmd)["post_info"].(map[string]any)
	assert.False(t, postInfo["brand_content_toggle"].(bool))
	assert.False(t, postInfo["brand_organic_toggle"].(bool))

	cmd.TikTok.DiscloseVideoContent = true
	postInfo = initRequestPayload(cmd)["post_info"].(map[string]any)
	assert.True(t, postInfo["brand_content_toggle"].(bool))
	assert.True(t, postInfo["brand_organic_toggle"].(bool))
}

func TestInitRequestPayloadDefaultsPrivacy(t *testing.T) {
	cmd := PublishCommand{MediaURL: "https://cdn.example.com/clip.mp4"}
	postInfo := initRequestPayload(cmd)["post_info"].(map[string]any)
	assert.Equal(t, string(tables.TIKTOK_PRIVACY_SELF_ONLY), postInfo["privacy_level"])
	assert.True(t, postInfo["disable_comment"].(bool))
}
