package publisherdrivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	tables "github.com/imposting/publish-core/dal/tables/v1"
)

const linkedinApiVersion = "v2"

// LinkedInDriver publishes UGC shares. Plain-text posts need no upload;
// image posts go through the registered-upload flow (register, binary PUT
// to a pre-signed URL) before the share references the asset URN.
type LinkedInDriver struct {
	accessToken string
	userId      string
	httpClient  *http.Client
}

func NewLinkedInDriver(integration tables.Integration) (*LinkedInDriver, error) {
	if integration.UserID == "" {
		return nil, ErrUserIdNotProvided
	}
	if integration.AccessToken == "" {
		return nil, ErrAccessTokenNotProvided
	}
	return &LinkedInDriver{
		accessToken: integration.AccessToken,
		userId:      integration.UserID,
		httpClient:  bearerClient(integration.AccessToken),
	}, nil
}

func (s *LinkedInDriver) Publish(ctx context.Context, cmd PublishCommand) (string, error) {
	if err := checkRateLimit(tables.Channel_LinkedIn); err != nil {
		return "", err
	}
	if cmd.MediaType == tables.MEDIA_VIDEO {
		return "", ErrUnsupportedPostType
	}

	shareMediaCategory := "NONE"
	if cmd.MediaPath != "" {
		shareMediaCategory = "IMAGE"
	}
	payload := s.basicSharePayload(cmd.Text, shareMediaCategory)

	if shareMediaCategory == "IMAGE" {
		asset, err := s.uploadMedia(ctx, cmd.MediaPath)
		if err != nil {
			return "", err
		}
		title := shareMediaTitle(cmd.Text)
		payload["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)["media"] = []map[string]any{
			{
				"status":      "READY",
				"description": map[string]string{"text": title},
				"media":       asset,
				"title":       map[string]string{"text": title},
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("https://api.linkedin.com/%s/ugcPosts", linkedinApiVersion), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	s.setShareHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Op: "linkedin ugc post", Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("linkedin ugc post", resp); err != nil {
		return "", err
	}

	var share struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&share); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://www.linkedin.com/feed/update/%s", share.ID), nil
}

// shareMediaTitle bounds the media title, slicing on runes so multi-byte
// text is never cut mid-character.
func shareMediaTitle(text string) string {
	runes := []rune(text)
	if len(runes) > 20 {
		return string(runes[:20])
	}
	return text
}

func (s *LinkedInDriver) setShareHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
}

func (s *LinkedInDriver) basicSharePayload(text string, shareMediaCategory string) map[string]any {
	return map[string]any{
		"author":         fmt.Sprintf("urn:li:person:%s", s.userId),
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": shareMediaCategory,
			},
		},
		"visibility": map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
}

type linkedinRegisterUploadResponse struct {
	Value struct {
		UploadMechanism map[string]struct {
			UploadURL string `json:"uploadUrl"`
		} `json:"uploadMechanism"`
		Asset string `json:"asset"`
	} `json:"value"`
}

func (s *LinkedInDriver) uploadMedia(ctx context.Context, filePath string) (string, error) {
	registerPayload := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   fmt.Sprintf("urn:li:person:%s", s.userId),
			"serviceRelationships": []map[string]string{
				{
					"relationshipType": "OWNER",
					"identifier":       "urn:li:userGeneratedContent",
				},
			},
		},
	}
	body, err := json.Marshal(registerPayload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("https://api.linkedin.com/%s/assets?action=registerUpload", linkedinApiVersion),
		bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	s.setShareHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Op: "linkedin register upload", Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("linkedin register upload", resp); err != nil {
		return "", err
	}

	var registered linkedinRegisterUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return "", err
	}
	mechanism, ok := registered.Value.UploadMechanism["com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"]
	if !ok || mechanism.UploadURL == "" {
		return "", &TransientNetworkError{Op: "linkedin register upload", Err: fmt.Errorf("no upload mechanism returned")}
	}

	imageBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, mechanism.UploadURL, bytes.NewReader(imageBytes))
	if err != nil {
		return "", err
	}
	putReq.Header.Set("Content-Type", "application/octet-stream")

	putResp, err := s.httpClient.Do(putReq)
	if err != nil {
		return "", &TransientNetworkError{Op: "linkedin binary upload", Err: err}
	}
	defer putResp.Body.Close()
	if err := checkResponse("linkedin binary upload", putResp); err != nil {
		return "", err
	}

	return registered.Value.Asset, nil
}
