package publisherdrivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/tweet/managetweet"
	"github.com/michimani/gotwi/tweet/managetweet/types"
	tables "github.com/imposting/publish-core/dal/tables/v1"
)

const xMediaUploadEndpoint = "https://api.x.com/2/media/upload"

// XDriver publishes tweets with the OAuth 2.0 user token stored on the
// integration. Images go through the media upload endpoint first, then the
// tweet references the returned media id.
type XDriver struct {
	accessToken string
	username    string
	httpClient  *http.Client
}

func NewXDriver(integration tables.Integration) (*XDriver, error) {
	if integration.AccessToken == "" {
		return nil, ErrAccessTokenNotProvided
	}
	if integration.Username == "" {
		return nil, ErrUserIdNotProvided
	}
	return &XDriver{
		accessToken: integration.AccessToken,
		username:    integration.Username,
		httpClient:  bearerClient(integration.AccessToken),
	}, nil
}

func (s *XDriver) Publish(ctx context.Context, cmd PublishCommand) (string, error) {
	if err := checkRateLimit(tables.Channel_X); err != nil {
		return "", err
	}
	if cmd.MediaType == tables.MEDIA_VIDEO {
		return "", ErrUnsupportedPostType
	}

	mediaId := ""
	if cmd.MediaType == tables.MEDIA_IMAGE && cmd.MediaPath != "" {
		var err error
		mediaId, err = s.uploadMedia(ctx, cmd.MediaPath)
		if err != nil {
			return "", err
		}
	}

	in := &gotwi.NewClientWithAccessTokenInput{
		AccessToken: s.accessToken,
	}
	c, err := gotwi.NewClientWithAccessToken(in)
	if err != nil {
		log.Printf("correlationID: %s error creating X client: %s", cmd.PostID, err)
		return "", err
	}

	p := &types.CreateInput{
		Text: gotwi.String(cmd.Text),
	}
	if mediaId != "" {
		p.Media = &types.CreateInputMedia{
			MediaIDs: []string{mediaId},
		}
	}

	res, err := managetweet.Create(ctx, c, p)
	if err != nil {
		return "", &TransientNetworkError{Op: "x create tweet", Err: err}
	}

	tweetId := gotwi.StringValue(res.Data.ID)
	log.Printf("correlationID: %s tweeted: %s", cmd.PostID, tweetId)
	return fmt.Sprintf("https://x.com/%s/status/%s", s.username, tweetId), nil
}

func (s *XDriver) uploadMedia(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", filepath.Base(filePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, xMediaUploadEndpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransientNetworkError{Op: "x media upload", Err: err}
	}
	defer resp.Body.Close()
	if err := checkResponse("x media upload", resp); err != nil {
		return "", err
	}

	var uploaded struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", err
	}
	if uploaded.Data.ID == "" {
		return "", &TransientNetworkError{Op: "x media upload", Err: fmt.Errorf("no media id returned")}
	}
	return uploaded.Data.ID, nil
}
