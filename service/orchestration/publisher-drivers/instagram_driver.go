package publisherdrivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/go-querystring/query"
	env "github.com/imposting/publish-core/configuration"
	tables "github.com/imposting/publish-core/dal/tables/v1"
)

const instagramApiVersion = "v23.0"

// InstagramDriver publishes through the Graph API container protocol: the
// media is registered as a container referencing a public URL, processed
// out-of-band, and committed with a second publish call once finished.
type InstagramDriver struct {
	accessToken string
	pageId      string
	httpClient  *http.Client

	pollInterval time.Duration
	pollBudget   int
}

func NewInstagramDriver(integration tables.Integration) (*InstagramDriver, error) {
	if integration.AccessToken == "" {
		return nil, ErrAccessTokenNotProvided
	}
	if integration.UserID == "" {
		return nil, ErrPageIdNotProvided
	}
	cfg := env.GetEnvConfigs()
	return &InstagramDriver{
		accessToken:  integration.AccessToken,
		pageId:       integration.UserID,
		httpClient:   bearerClient(integration.AccessToken),
		pollInterval: time.Duration(cfg.ContainerPollSleepSec) * time.Second,
		pollBudget:   cfg.ContainerPollMaxAttempts,
	}, nil
}

func (s *InstagramDriver) mediaEndpoint() string {
	return fmt.Sprintf("https://graph.facebook.com/%s/%s/media", instagramApiVersion, s.pageId)
}

func (s *InstagramDriver) mediaPublishEndpoint() string {
	return fmt.Sprintf("https://graph.facebook.com/%s/%s/media_publish", instagramApiVersion, s.pageId)
}

func (s *InstagramDriver) Publish(ctx context.Context, cmd PublishCommand) (string, error) {
	if err := checkRateLimit(tables.Channel_Instagram); err != nil {
		return "", err
	}
	if cmd.MediaURL == "" {
		return "", &PermanentConfigError{Reason: "an image or a video is required for Instagram"}
	}

	switch cmd.MediaType {
	case tables.MEDIA_IMAGE:
		return s.publishImage(ctx, cmd)
	case tables.MEDIA_VIDEO:
		return s.publishReel(ctx, cmd)
	}
	return "", ErrUnsupportedPostType
}

type instagramImageContainerParams struct {
	ImageURL       string `url:"image_url"`
	IsCarouselItem bool   `url:"is_carousel_item"`
	AltText        string `url:"alt_text"`
	Caption        string `url:"caption"`
	AccessToken    string `url:"access_token"`
}

type instagramReelContainerParams struct {
	VideoURL    string `url:"video_url"`
	Caption     string `url:"caption"`
	MediaType   string `url:"media_type"`
	AccessToken string `url:"access_token"`
}

func (s *InstagramDriver) publishImage(ctx context.Context, cmd PublishCommand) (string, error) {
	params, err := query.Values(instagramImageContainerParams{
		ImageURL:       cmd.MediaURL,
		IsCarouselItem: false,
		AltText:        cmd.Text,
		Caption:        cmd.Text,
		AccessToken:    s.accessToken,
	})
	if err != nil {
		return "", err
	}

	containerId, err := s.createContainer(ctx, cmd.PostID, params)
	if err != nil {
		return "", err
	}

	err = s.waitForContainer(ctx, cmd.PostID, containerId, s.pollBudget)
	if err != nil {
		return "", err
	}
	return s.commitContainer(ctx, cmd.PostID, containerId)
}

func (s *InstagramDriver) publishReel(ctx context.Context, cmd PublishCommand) (string, error) {
	params, err := query.Values(instagramReelContainerParams{
		VideoURL:    cmd.MediaURL,
		Caption:     cmd.Text,
		MediaType:   "REELS",
		AccessToken: s.accessToken,
	})
	if err != nil {
		return "", err
	}

	containerId, err := s.createContainer(ctx, cmd.PostID, params)
	if err != nil {
		return "", err
	}

	// Processing time scales with upload size; so does the poll budget.
	budget := s.pollBudget
	if info, statErr := os.Stat(cmd.MediaPath); statErr == nil {
		sizeMB := float64(info.Size()) / (1024 * 1024)
		budget = ReelPollBudget(sizeMB)
	}

	err = s.waitForContainer(ctx, cmd.PostID, containerId, budget)
	if err != nil {
		return "", err
	}
	return s.commitContainer(ctx, cmd.PostID, containerId)
}

// ReelPollBudget returns the size-scaled poll attempt count for reels.
func ReelPollBudget(sizeMB float64) int {
	budget := int(sizeMB * 2)
	if budget < 10 {
		budget = 10
	}
	return budget
}

func (s *InstagramDriver) createContainer(ctx context.Context, postId string, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.mediaEndpoint()+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Op: "instagram create container", Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("instagram create container", resp); err != nil {
		return "", err
	}

	var container struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return "", err
	}
	log.Printf("correlationID: %s instagram container created: %s", postId, container.ID)
	return container.ID, nil
}

func (s *InstagramDriver) waitForContainer(ctx context.Context, postId string, containerId string, budget int) error {
	check := func() (PollState, error) {
		status, err := s.containerStatus(ctx, containerId)
		if err != nil {
			return PollFailed, err
		}
		switch status {
		case "FINISHED":
			return PollFinished, nil
		case "ERROR", "EXPIRED":
			return PollFailed, fmt.Errorf("media container failed with status: %s", status)
		}
		return PollPending, nil
	}
	err := PollUntilReady(ctx, check, budget, s.pollInterval)
	if err != nil {
		log.Printf("correlationID: %s instagram container %s not ready: %s", postId, containerId, err)
	}
	return err
}

func (s *InstagramDriver) containerStatus(ctx context.Context, containerId string) (string, error) {
	statusUrl := fmt.Sprintf("https://graph.facebook.com/%s/%s", instagramApiVersion, containerId)
	params := url.Values{}
	params.Set("fields", "status_code")
	params.Set("access_token", s.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusUrl+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Op: "instagram container status", Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("instagram container status", resp); err != nil {
		return "", err
	}

	var status struct {
		StatusCode string `json:"status_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", err
	}
	return status.StatusCode, nil
}

func (s *InstagramDriver) commitContainer(ctx context.Context, postId string, containerId string) (string, error) {
	payload, err := json.Marshal(map[string]string{"creation_id": containerId})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.mediaPublishEndpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Op: "instagram media publish", Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("instagram media publish", resp); err != nil {
		return "", err
	}

	var publish struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&publish); err != nil {
		return "", err
	}
	return s.getPostUrl(ctx, publish.ID)
}

func (s *InstagramDriver) getPostUrl(ctx context.Context, remotePostId string) (string, error) {
	params := url.Values{}
	params.Set("fields", "permalink")
	params.Set("access_token", s.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("https://graph.facebook.com/%s?%s", remotePostId, params.Encode()), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Op: "instagram permalink", Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("instagram permalink", resp); err != nil {
		return "", err
	}

	var body struct {
		Permalink string `json:"permalink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Permalink, nil
}
