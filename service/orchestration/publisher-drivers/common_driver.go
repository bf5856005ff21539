package publisherdrivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	env "github.com/imposting/publish-core/configuration"
	dal "github.com/imposting/publish-core/dal"
	tables "github.com/imposting/publish-core/dal/tables/v1"
	"golang.org/x/oauth2"
)

// PublishCommand carries everything a driver needs for one remote publish.
// Drivers never read or write the post and integration stores; the
// orchestrator is the single writer for attempt rows.
type PublishCommand struct {
	PostID    string // Also system correlation ID.
	AccountID string

	Text      string
	MediaType tables.MediaFileType
	MediaURL  string // Publicly reachable URL; container-based platforms pull from it.
	MediaPath string // Local temp file for binary uploads and size probes.

	TikTok tables.TikTokOptions
}

// PublisherDriver publishes one command and returns the canonical permalink.
type PublisherDriver interface {
	Publish(ctx context.Context, cmd PublishCommand) (string, error)
}

// CreatorProbe is implemented by drivers whose platform exposes a
// pre-publish capability query. The orchestrator folds the result into the
// attempt row's options sidecar before publishing.
type CreatorProbe interface {
	GetCreatorInfo(ctx context.Context) (CreatorInfo, error)
}

// GetDriver builds the driver for a channel. Construction fails without a
// network call when the stored credential or platform-user-identifier is
// absent; those are PermanentConfigErrors.
func GetDriver(channel tables.ChannelName, integration tables.Integration) (PublisherDriver, error) {
	switch channel {
	case tables.Channel_X:
		return NewXDriver(integration)
	case tables.Channel_LinkedIn:
		return NewLinkedInDriver(integration)
	case tables.Channel_Facebook:
		return NewFacebookDriver(integration)
	case tables.Channel_Instagram:
		return NewInstagramDriver(integration)
	case tables.Channel_TikTok:
		return NewTikTokDriver(integration)
	}
	return nil, errors.New("no matching channel-to-driver found")
}

// PermanentConfigError cannot self-resolve by retrying: missing credential,
// missing user identifier, unsupported media for the channel.
type PermanentConfigError struct {
	Reason string
}

func (e *PermanentConfigError) Error() string {
	return e.Reason
}

// TransientNetworkError wraps remote-call failures that may succeed later.
type TransientNetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

func IsPermanent(err error) bool {
	var p *PermanentConfigError
	return errors.As(err, &p)
}

// IntegrationRevokedError means the platform reports the stored credential
// can no longer publish at all. The orchestrator deletes the integration
// instead of scheduling a retry.
type IntegrationRevokedError struct {
	Reason string
}

func (e *IntegrationRevokedError) Error() string {
	return e.Reason
}

func IsRevoked(err error) bool {
	var r *IntegrationRevokedError
	return errors.As(err, &r)
}

var (
	ErrAccessTokenNotProvided = &PermanentConfigError{Reason: "access token not provided"}
	ErrUserIdNotProvided      = &PermanentConfigError{Reason: "platform user id not provided"}
	ErrPageIdNotProvided      = &PermanentConfigError{Reason: "page id not provided"}
	ErrUnsupportedPostType    = &PermanentConfigError{Reason: "this type of post is not supported"}
)

// bearerClient returns an http client that injects the bearer token on
// every request.
func bearerClient(accessToken string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return oauth2.NewClient(context.Background(), src)
}

// checkResponse converts a non-2xx remote reply into a TransientNetworkError
// carrying a body snippet for the attempt-row error column.
func checkResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &TransientNetworkError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%s", string(body)),
	}
}

func checkRateLimit(channel tables.ChannelName) error {
	cfg := env.GetEnvConfigs()
	var apiName string
	var max int64
	switch channel {
	case tables.Channel_X:
		apiName, max = dal.RATE_API_X_POST, cfg.MaxRequestsXMinute
	case tables.Channel_LinkedIn:
		apiName, max = dal.RATE_API_LINKEDIN_POST, cfg.MaxRequestsLinkedInMinute
	case tables.Channel_Facebook:
		apiName, max = dal.RATE_API_FACEBOOK_POST, cfg.MaxRequestsFacebookMinute
	case tables.Channel_Instagram:
		apiName, max = dal.RATE_API_INSTAGRAM_POST, cfg.MaxRequestsInstagramMinute
	case tables.Channel_TikTok:
		apiName, max = dal.RATE_API_TIKTOK_POST, cfg.MaxRequestsTikTokMinute
	default:
		return nil
	}
	if !dal.IsCallable(apiName, max) {
		return &TransientNetworkError{Op: apiName, Err: fmt.Errorf("rate limit breached")}
	}
	return nil
}
