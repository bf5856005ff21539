package publisherdrivers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/go-querystring/query"
	tables "github.com/imposting/publish-core/dal/tables/v1"
)

const facebookApiVersion = "v23.0"

// FacebookDriver is a thin adapter over the Graph page-publishing
// endpoints: one call per publish, payload shape varying by media kind.
type FacebookDriver struct {
	accessToken string
	pageId      string
	httpClient  *http.Client
}

func NewFacebookDriver(integration tables.Integration) (*FacebookDriver, error) {
	if integration.AccessToken == "" {
		return nil, ErrAccessTokenNotProvided
	}
	if integration.UserID == "" {
		return nil, ErrPageIdNotProvided
	}
	return &FacebookDriver{
		accessToken: integration.AccessToken,
		pageId:      integration.UserID,
		httpClient:  bearerClient(integration.AccessToken),
	}, nil
}

type facebookFeedParams struct {
	Message     string `url:"message"`
	AccessToken string `url:"access_token"`
}

type facebookPhotoParams struct {
	URL         string `url:"url"`
	Message     string `url:"message"`
	AccessToken string `url:"access_token"`
}

type facebookVideoParams struct {
	FileURL     string `url:"file_url"`
	Description string `url:"description"`
	AccessToken string `url:"access_token"`
}

func (s *FacebookDriver) Publish(ctx context.Context, cmd PublishCommand) (string, error) {
	if err := checkRateLimit(tables.Channel_Facebook); err != nil {
		return "", err
	}

	var edge string
	var params any
	switch cmd.MediaType {
	case tables.MEDIA_IMAGE:
		edge = "photos"
		params = facebookPhotoParams{URL: cmd.MediaURL, Message: cmd.Text, AccessToken: s.accessToken}
	case tables.MEDIA_VIDEO:
		edge = "videos"
		params = facebookVideoParams{FileURL: cmd.MediaURL, Description: cmd.Text, AccessToken: s.accessToken}
	default:
		edge = "feed"
		params = facebookFeedParams{Message: cmd.Text, AccessToken: s.accessToken}
	}

	values, err := query.Values(params)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s/%s?%s",
		facebookApiVersion, s.pageId, edge, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Op: "facebook publish", Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("facebook publish", resp); err != nil {
		return "", err
	}

	var created struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	remoteId := created.PostID
	if remoteId == "" {
		remoteId = created.ID
	}
	return fmt.Sprintf("https://www.facebook.com/%s", remoteId), nil
}
