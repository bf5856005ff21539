package publisherdrivers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	env "github.com/imposting/publish-core/configuration"
	tables "github.com/imposting/publish-core/dal/tables/v1"
)

const tiktokApiBase = "https://open.tiktokapis.com/v2"

// TikTokDriver publishes through the direct-post API: a single init call
// with PULL_FROM_URL sourcing, then a status poll until the remote side
// finishes downloading and publishing the video.
type TikTokDriver struct {
	accessToken string
	openId      string
	httpClient  *http.Client

	pollInterval time.Duration
	pollBudget   int
}

func NewTikTokDriver(integration tables.Integration) (*TikTokDriver, error) {
	if integration.AccessToken == "" {
		return nil, ErrAccessTokenNotProvided
	}
	if integration.UserID == "" {
		return nil, ErrUserIdNotProvided
	}
	cfg := env.GetEnvConfigs()
	return &TikTokDriver{
		accessToken:  integration.AccessToken,
		openId:       integration.UserID,
		httpClient:   bearerClient(integration.AccessToken),
		pollInterval: time.Duration(cfg.ContainerPollSleepSec) * time.Second,
		pollBudget:   cfg.ContainerPollMaxAttempts,
	}, nil
}

// CreatorInfo mirrors the creator_info query response; the scheduler uses
// it to pre-fill the TikTok options sidecar and as a capability probe.
type CreatorInfo struct {
	CreatorNickname         string   `json:"creator_nickname"`
	CreatorAvatarURL        string   `json:"creator_avatar_url"`
	PrivacyLevelOptions     []string `json:"privacy_level_options"`
	MaxVideoPostDurationSec int      `json:"max_video_post_duration_sec"`
	CommentDisabled         bool     `json:"comment_disabled"`
	DuetDisabled            bool     `json:"duet_disabled"`
	StitchDisabled          bool     `json:"stitch_disabled"`
}

type tiktokEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// tiktokAPIError is an application-level rejection carried inside a 2xx
// response envelope, as opposed to a transport failure.
type tiktokAPIError struct {
	Code    string
	Message string
}

func (e *tiktokAPIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// GetCreatorInfo probes posting capability. An error code other than "ok"
// means the integration is no longer usable for publishing; transport
// failures stay transient.
func (s *TikTokDriver) GetCreatorInfo(ctx context.Context) (CreatorInfo, error) {
	result := CreatorInfo{}
	data, err := s.postJSON(ctx, "/post/publish/creator_info/query/", nil)
	if err != nil {
		var apiErr *tiktokAPIError
		if errors.As(err, &apiErr) {
			return result, &IntegrationRevokedError{Reason: fmt.Sprintf("tiktok creator info: %s", apiErr)}
		}
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, err
	}
	return result, nil
}

// MergeCreatorInfo folds a capability probe into the options sidecar.
// Platform-side restrictions win over what the user asked for; a privacy
// level the creator may not use falls back to self-only.
func MergeCreatorInfo(opts tables.TikTokOptions, info CreatorInfo) tables.TikTokOptions {
	if opts.Nickname == "" {
		opts.Nickname = info.CreatorNickname
	}
	opts.MaxVideoPostDurationSec = info.MaxVideoPostDurationSec
	if info.CommentDisabled {
		opts.AllowComment = false
	}
	if info.DuetDisabled {
		opts.AllowDuet = false
	}
	if info.StitchDisabled {
		opts.AllowStitch = false
	}
	if opts.PrivacyLevel != "" && !privacyAllowed(info.PrivacyLevelOptions, opts.PrivacyLevel) {
		opts.PrivacyLevel = tables.TIKTOK_PRIVACY_SELF_ONLY
	}
	return opts
}

func privacyAllowed(options []string, level tables.TikTokPrivacyLevel) bool {
	if len(options) == 0 {
		return true
	}
	for _, option := range options {
		if option == string(level) {
			return true
		}
	}
	return false
}

func (s *TikTokDriver) Publish(ctx context.Context, cmd PublishCommand) (string, error) {
	if err := checkRateLimit(tables.Channel_TikTok); err != nil {
		return "", err
	}
	if cmd.MediaType != tables.MEDIA_VIDEO || cmd.MediaURL == "" {
		return "", &PermanentConfigError{Reason: "a .mp4 video in reel format is needed for TikTok"}
	}

	opts := cmd.TikTok
	data, err := s.postJSON(ctx, "/post/publish/video/init/", initRequestPayload(cmd))
	if err != nil {
		return "", err
	}

	var initResp struct {
		PublishID string `json:"publish_id"`
	}
	if err := json.Unmarshal(data, &initResp); err != nil {
		return "", err
	}
	if initResp.PublishID == "" {
		return "", &TransientNetworkError{Op: "tiktok video init", Err: fmt.Errorf("no publish_id returned")}
	}
	log.Printf("correlationID: %s tiktok publish initialized: %s", cmd.PostID, initResp.PublishID)

	videoId, err := s.waitForPublish(ctx, cmd.PostID, initResp.PublishID)
	if err != nil {
		return "", err
	}
	if videoId != "" {
		return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", opts.Nickname, videoId), nil
	}
	return fmt.Sprintf("https://www.tiktok.com/@%s", opts.Nickname), nil
}

// initRequestPayload builds the direct-post init body. The brand toggles
// only apply once the user disclosed commercial content.
func initRequestPayload(cmd PublishCommand) map[string]any {
	opts := cmd.TikTok
	privacy := opts.PrivacyLevel
	if privacy == "" {
		privacy = tables.TIKTOK_PRIVACY_SELF_ONLY
	}
	return map[string]any{
		"post_info": map[string]any{
			"title":                    cmd.Text,
			"privacy_level":            string(privacy),
			"disable_comment":          !opts.AllowComment,
			"disable_duet":             !opts.AllowDuet,
			"disable_stitch":           !opts.AllowStitch,
			"video_cover_timestamp_ms": 1000,
			"brand_content_toggle":     opts.DiscloseVideoContent && opts.BrandedContent,
			"brand_organic_toggle":     opts.DiscloseVideoContent && opts.YourBrand,
			"is_aigc":                  opts.AIGenerated,
		},
		"source_info": map[string]any{
			"source":    "PULL_FROM_URL",
			"video_url": cmd.MediaURL,
		},
	}
}

func (s *TikTokDriver) waitForPublish(ctx context.Context, postId string, publishId string) (string, error) {
	videoId := ""
	check := func() (PollState, error) {
		data, err := s.postJSON(ctx, "/post/publish/status/fetch/", map[string]any{"publish_id": publishId})
		if err != nil {
			return PollFailed, err
		}
		var status struct {
			Status                   string  `json:"status"`
			FailReason               string  `json:"fail_reason"`
			PublicalyAvailablePostID []int64 `json:"publicaly_available_post_id"`
		}
		if err := json.Unmarshal(data, &status); err != nil {
			return PollFailed, err
		}
		switch status.Status {
		case "PUBLISH_COMPLETE":
			if len(status.PublicalyAvailablePostID) > 0 {
				videoId = fmt.Sprintf("%d", status.PublicalyAvailablePostID[0])
			}
			return PollFinished, nil
		case "FAILED":
			return PollFailed, fmt.Errorf("tiktok publish failed: %s", status.FailReason)
		}
		return PollPending, nil
	}

	err := PollUntilReady(ctx, check, s.pollBudget, s.pollInterval)
	if err != nil {
		log.Printf("correlationID: %s tiktok publish %s not complete: %s", postId, publishId, err)
		return "", err
	}
	return videoId, nil
}

func (s *TikTokDriver) postJSON(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokApiBase+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &TransientNetworkError{Op: "tiktok " + path, Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("tiktok "+path, resp); err != nil {
		return nil, err
	}

	var envelope tiktokEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.Error.Code != "" && envelope.Error.Code != "ok" {
		return nil, &TransientNetworkError{
			Op:  "tiktok " + path,
			Err: &tiktokAPIError{Code: envelope.Error.Code, Message: envelope.Error.Message},
		}
	}
	return envelope.Data, nil
}
