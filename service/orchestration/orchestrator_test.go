package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tables "github.com/imposting/publish-core/dal/tables/v1"
	drivers "github.com/imposting/publish-core/service/orchestration/publisher-drivers"
)

type fakeAttemptStore struct {
	saved   []tables.ScheduledPost
	created []tables.ScheduledPost
}

func (s *fakeAttemptStore) Save(post tables.ScheduledPost) error {
	s.saved = append(s.saved, post)
	return nil
}

func (s *fakeAttemptStore) Create(post tables.ScheduledPost) error {
	s.created = append(s.created, post)
	return nil
}

type fakeIntegrationStore struct {
	integrations map[tables.ChannelName]tables.Integration
	deleted      []tables.ChannelName
}

func (s *fakeIntegrationStore) Get(accountId string, platform tables.ChannelName) (tables.Integration, error) {
	return s.integrations[platform], nil
}

func (s *fakeIntegrationStore) Delete(accountId string, platform tables.ChannelName) error {
	s.deleted = append(s.deleted, platform)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(channel string, message string) {
	n.messages = append(n.messages, message)
}

type noopPreparer struct{}

func (noopPreparer) Prepare(ctx context.Context, post *tables.ScheduledPost) (string, string, func(), error) {
	return "", "", nil, nil
}

type stubDriver struct {
	link string
	err  error
}

func (d stubDriver) Publish(ctx context.Context, cmd drivers.PublishCommand) (string, error) {
	return d.link, d.err
}

func stubFactory(results map[tables.ChannelName]stubDriver) DriverFactory {
	return func(channel tables.ChannelName, integration tables.Integration) (drivers.PublisherDriver, error) {
		driver, ok := results[channel]
		if !ok {
			return nil, fmt.Errorf("no stub for %s", channel)
		}
		return driver, nil
	}
}

func testConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ErrorMaxLength:        50,
		MaxPlatformRetries:    20,
		RetryBaseDelayMinutes: 5,
		AlertChannelName:      "alerts",
	}
}

func allIntegrations() *fakeIntegrationStore {
	store := &fakeIntegrationStore{integrations: map[tables.ChannelName]tables.Integration{}}
	for _, c := range tables.AllChannels {
		store.integrations[c] = tables.Integration{AccountID: "account-1", Platform: c, AccessToken: "token"}
	}
	return store
}

func dueAttempt(channels ...tables.ChannelName) tables.ScheduledPost {
	post := tables.ScheduledPost{
		PostID:                "post-1",
		AccountID:             "account-1",
		CreatedAtEpochMilli:   1700000000000,
		ScheduledAtEpochMilli: 1700000600000,
		PostTimezone:          "UTC",
		Description:           "hello world",
	}
	for _, c := range channels {
		post.SetPlatformState(c, tables.PlatformState{Enabled: true})
	}
	return post
}

func TestOrchestrateSuccessDisablesChannelWithoutClone(t *testing.T) {
	posts := &fakeAttemptStore{}
	notifier := &fakeNotifier{}
	factory := stubFactory(map[tables.ChannelName]stubDriver{
		tables.Channel_X: {link: "https://x.com/u/status/1"},
	})
	o := NewPublishOrchestrator(posts, allIntegrations(), factory, notifier, noopPreparer{}, testConfig())

	outcomes := o.Orchestrate(context.Background(), dueAttempt(tables.Channel_X))
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "https://x.com/u/status/1", outcomes[0].PermaLink)

	require.NotEmpty(t, posts.saved)
	final := posts.saved[len(posts.saved)-1]
	state := final.PlatformState(tables.Channel_X)
	assert.False(t, state.Enabled)
	assert.Equal(t, "https://x.com/u/status/1", state.ResultLink)
	assert.Empty(t, state.LastError)
	assert.Empty(t, posts.created)
	assert.Empty(t, notifier.messages)
}

func TestOrchestrateFailureClonesWithBackoff(t *testing.T) {
	posts := &fakeAttemptStore{}
	notifier := &fakeNotifier{}
	factory := stubFactory(map[tables.ChannelName]stubDriver{
		tables.Channel_LinkedIn: {err: errors.New("upstream said no")},
	})
	o := NewPublishOrchestrator(posts, allIntegrations(), factory, notifier, noopPreparer{}, testConfig())

	parent := dueAttempt(tables.Channel_LinkedIn)
	outcomes := o.Orchestrate(context.Background(), parent)
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)

	require.Len(t, posts.created, 1)
	clone := posts.created[0]
	assert.NotEqual(t, parent.PostID, clone.PostID)
	assert.Equal(t, parent.ScheduledAtEpochMilli+(5*time.Minute).Milliseconds(), clone.ScheduledAtEpochMilli)
	assert.Equal(t, []tables.ChannelName{tables.Channel_LinkedIn}, clone.EnabledChannels())

	cloneState := clone.PlatformState(tables.Channel_LinkedIn)
	assert.Equal(t, 1, cloneState.RetryCount)
	assert.Equal(t, "upstream said no", cloneState.LastError)
	assert.Len(t, notifier.messages, 1)

	final := posts.saved[len(posts.saved)-1]
	assert.False(t, final.PlatformState(tables.Channel_LinkedIn).Enabled)
	assert.Equal(t, "upstream said no", final.PlatformState(tables.Channel_LinkedIn).LastError)
}

func TestOrchestrateCloneResetsOtherChannels(t *testing.T) {
	posts := &fakeAttemptStore{}
	factory := stubFactory(map[tables.ChannelName]stubDriver{
		tables.Channel_X:        {link: "https://x.com/u/status/2"},
		tables.Channel_Facebook: {err: errors.New("graph error")},
	})
	o := NewPublishOrchestrator(posts, allIntegrations(), factory, &fakeNotifier{}, noopPreparer{}, testConfig())

	parent := dueAttempt(tables.Channel_X, tables.Channel_Facebook)
	o.Orchestrate(context.Background(), parent)

	require.Len(t, posts.created, 1)
	clone := posts.created[0]
	assert.Equal(t, []tables.ChannelName{tables.Channel_Facebook}, clone.EnabledChannels())
	for _, c := range tables.AllChannels {
		if c == tables.Channel_Facebook {
			continue
		}
		assert.Equal(t, tables.PlatformState{}, clone.PlatformState(c))
	}
}

func TestOrchestrateRetryCeilingDeletesIntegration(t *testing.T) {
	posts := &fakeAttemptStore{}
	integrations := allIntegrations()
	factory := stubFactory(map[tables.ChannelName]stubDriver{
		tables.Channel_Instagram: {err: errors.New("container expired")},
	})
	o := NewPublishOrchestrator(posts, integrations, factory, &fakeNotifier{}, noopPreparer{}, testConfig())

	post := dueAttempt(tables.Channel_Instagram)
	post.SetPlatformState(tables.Channel_Instagram, tables.PlatformState{Enabled: true, RetryCount: 19})
	o.Orchestrate(context.Background(), post)

	assert.Empty(t, posts.created)
	assert.Equal(t, []tables.ChannelName{tables.Channel_Instagram}, integrations.deleted)
}

func TestOrchestrateMissingIntegrationIsPermanent(t *testing.T) {
	posts := &fakeAttemptStore{}
	integrations := &fakeIntegrationStore{integrations: map[tables.ChannelName]tables.Integration{}}
	factory := stubFactory(map[tables.ChannelName]stubDriver{})
	o := NewPublishOrchestrator(posts, integrations, factory, &fakeNotifier{}, noopPreparer{}, testConfig())

	outcomes := o.Orchestrate(context.Background(), dueAttempt(tables.Channel_TikTok))
	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	assert.True(t, drivers.IsPermanent(outcomes[0].Err))
	assert.Contains(t, outcomes[0].Err.Error(), "(Re-)Authorize TikTok")
}

func TestOrchestrateOneFailureDoesNotAbortOthers(t *testing.T) {
	posts := &fakeAttemptStore{}
	factory := stubFactory(map[tables.ChannelName]stubDriver{
		tables.Channel_X:        {link: "https://x.com/u/status/3"},
		tables.Channel_LinkedIn: {err: errors.New("boom")},
		tables.Channel_Facebook: {link: "https://www.facebook.com/42"},
	})
	o := NewPublishOrchestrator(posts, allIntegrations(), factory, &fakeNotifier{}, noopPreparer{}, testConfig())

	outcomes := o.Orchestrate(context.Background(),
		dueAttempt(tables.Channel_X, tables.Channel_LinkedIn, tables.Channel_Facebook))
	require.Len(t, outcomes, 3)

	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Len(t, posts.created, 1)
}

func TestOrchestrateTruncatesStoredError(t *testing.T) {
	posts := &fakeAttemptStore{}
	longMsg := "this error message is much longer than the fifty character storage budget allows"
	factory := stubFactory(map[tables.ChannelName]stubDriver{
		tables.Channel_X: {err: errors.New(longMsg)},
	})
	o := NewPublishOrchestrator(posts, allIntegrations(), factory, &fakeNotifier{}, noopPreparer{}, testConfig())

	o.Orchestrate(context.Background(), dueAttempt(tables.Channel_X))

	final := posts.saved[len(posts.saved)-1]
	stored := final.PlatformState(tables.Channel_X).LastError
	assert.Len(t, stored, 50)
	assert.Equal(t, longMsg[:50], stored)
}

func TestOrchestrateMediaPrepFailureFailsEveryChannel(t *testing.T) {
	posts := &fakeAttemptStore{}
	factory := stubFactory(map[tables.ChannelName]stubDriver{
		tables.Channel_X:        {link: "https://x.com/u/status/4"},
		tables.Channel_Facebook: {link: "https://www.facebook.com/43"},
	})
	o := NewPublishOrchestrator(posts, allIntegrations(), factory, &fakeNotifier{}, failingPreparer{}, testConfig())

	outcomes := o.Orchestrate(context.Background(), dueAttempt(tables.Channel_X, tables.Channel_Facebook))
	require.Len(t, outcomes, 2)
	for _, outcome := range outcomes {
		assert.Error(t, outcome.Err)
	}
	assert.Len(t, posts.created, 2)
}

type failingPreparer struct{}

func (failingPreparer) Prepare(ctx context.Context, post *tables.ScheduledPost) (string, string, func(), error) {
	return "", "", nil, errors.New("object missing")
}

type probingDriver struct {
	stubDriver
	info     drivers.CreatorInfo
	probeErr error
}

func (d probingDriver) GetCreatorInfo(ctx context.Context) (drivers.CreatorInfo, error) {
	return d.info, d.probeErr
}

func TestOrchestrateProbeFailureDeletesIntegration(t *testing.T) {
	posts := &fakeAttemptStore{}
	integrations := allIntegrations()
	notifier := &fakeNotifier{}
	factory := func(channel tables.ChannelName, integration tables.Integration) (drivers.PublisherDriver, error) {
		return probingDriver{
			probeErr: &drivers.IntegrationRevokedError{Reason: "tiktok creator info: spam_risk_too_many_posts"},
		}, nil
	}
	o := NewPublishOrchestrator(posts, integrations, factory, notifier, noopPreparer{}, testConfig())

	outcomes := o.Orchestrate(context.Background(), dueAttempt(tables.Channel_TikTok))
	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)

	assert.Empty(t, posts.created)
	assert.Equal(t, []tables.ChannelName{tables.Channel_TikTok}, integrations.deleted)
	assert.Len(t, notifier.messages, 1)

	final := posts.saved[len(posts.saved)-1]
	state := final.PlatformState(tables.Channel_TikTok)
	assert.False(t, state.Enabled)
	assert.Contains(t, state.LastError, "creator info")
}

func TestOrchestrateProbeRefreshesSidecar(t *testing.T) {
	posts := &fakeAttemptStore{}
	factory := func(channel tables.ChannelName, integration tables.Integration) (drivers.PublisherDriver, error) {
		return probingDriver{
			stubDriver: stubDriver{link: "https://www.tiktok.com/@someone/video/1"},
			info: drivers.CreatorInfo{
				CreatorNickname:         "someone",
				MaxVideoPostDurationSec: 600,
				CommentDisabled:         true,
			},
		}, nil
	}
	o := NewPublishOrchestrator(posts, allIntegrations(), factory, &fakeNotifier{}, noopPreparer{}, testConfig())

	post := dueAttempt(tables.Channel_TikTok)
	post.TikTok = tables.TikTokOptions{AllowComment: true, AllowDuet: true}
	outcomes := o.Orchestrate(context.Background(), post)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)

	final := posts.saved[len(posts.saved)-1]
	assert.Equal(t, "someone", final.TikTok.Nickname)
	assert.Equal(t, 600, final.TikTok.MaxVideoPostDurationSec)
	assert.False(t, final.TikTok.AllowComment)
	assert.True(t, final.TikTok.AllowDuet)
}

func TestTruncateErrorSlicesOnRunes(t *testing.T) {
	err := errors.New(strings.Repeat("ü", 60))
	got := TruncateError(err, 50)
	assert.Equal(t, strings.Repeat("ü", 50), got)
	assert.True(t, utf8.ValidString(got))
}

func TestBackoffDelayDoubles(t *testing.T) {
	assert.Equal(t, 5*time.Minute, BackoffDelay(1, 5))
	assert.Equal(t, 10*time.Minute, BackoffDelay(2, 5))
	assert.Equal(t, 20*time.Minute, BackoffDelay(3, 5))
	assert.Equal(t, 40*time.Minute, BackoffDelay(4, 5))
}

func TestCloneForRetryKeepsContentFields(t *testing.T) {
	parent := dueAttempt(tables.Channel_X)
	parent.MediaLookupKey = "uploads/account-1/cat.png"
	parent.MediaFileType = tables.MEDIA_IMAGE
	parent.ImageProcessed = true

	clone := CloneForRetry(parent, tables.Channel_X, "boom", 2, 5)
	assert.Equal(t, parent.AccountID, clone.AccountID)
	assert.Equal(t, parent.Description, clone.Description)
	assert.Equal(t, parent.MediaLookupKey, clone.MediaLookupKey)
	assert.True(t, clone.ImageProcessed)
	assert.Equal(t, parent.ScheduledAtEpochMilli+(10*time.Minute).Milliseconds(), clone.ScheduledAtEpochMilli)
}
