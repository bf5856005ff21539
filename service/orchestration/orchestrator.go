package orchestration

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	env "github.com/imposting/publish-core/configuration"
	dal "github.com/imposting/publish-core/dal"
	tables "github.com/imposting/publish-core/dal/tables/v1"
	drivers "github.com/imposting/publish-core/service/orchestration/publisher-drivers"
)

// PublishOutcome is the per-platform result of one orchestration pass.
type PublishOutcome struct {
	Channel   tables.ChannelName
	PermaLink string
	Err       error

	// Set when a capability probe refreshed the platform sidecar.
	TikTokOptions *tables.TikTokOptions
}

// AttemptStore persists attempt rows. The orchestrator is the single
// writer for a row while a pass is running.
type AttemptStore interface {
	Save(post tables.ScheduledPost) error
	Create(post tables.ScheduledPost) error
}

// IntegrationStore is the credential-store surface the orchestrator needs.
type IntegrationStore interface {
	Get(accountId string, platform tables.ChannelName) (tables.Integration, error)
	Delete(accountId string, platform tables.ChannelName) error
}

// Notifier fires operator alerts; failures must not affect outcomes.
type Notifier interface {
	Notify(channel string, message string)
}

// MediaPreparer resolves publish-ready media for a post, running the
// normalizer when the row asks for it. It may mutate the post's media
// fields; the orchestrator persists the row afterwards.
type MediaPreparer interface {
	Prepare(ctx context.Context, post *tables.ScheduledPost) (mediaUrl string, mediaPath string, cleanup func(), err error)
}

type DriverFactory func(channel tables.ChannelName, integration tables.Integration) (drivers.PublisherDriver, error)

type OrchestratorConfig struct {
	ErrorMaxLength        int
	MaxPlatformRetries    int
	RetryBaseDelayMinutes int
	AlertChannelName      string
}

// PublishOrchestrator fans one due attempt out to every enabled platform,
// records the outcomes, and clones failed platforms onto backoff rows.
type PublishOrchestrator struct {
	posts        AttemptStore
	integrations IntegrationStore
	newDriver    DriverFactory
	notifier     Notifier
	preparer     MediaPreparer
	cfg          OrchestratorConfig
}

func NewPublishOrchestrator(posts AttemptStore, integrations IntegrationStore, factory DriverFactory,
	notifier Notifier, preparer MediaPreparer, cfg OrchestratorConfig) *PublishOrchestrator {
	return &PublishOrchestrator{
		posts:        posts,
		integrations: integrations,
		newDriver:    factory,
		notifier:     notifier,
		preparer:     preparer,
		cfg:          cfg,
	}
}

// DefaultPublishOrchestrator wires the orchestrator against DynamoDB, the
// real driver factory, SNS alerts, and the S3-backed media preparer.
func DefaultPublishOrchestrator() *PublishOrchestrator {
	envCfg := env.GetEnvConfigs()
	cfg := OrchestratorConfig{
		ErrorMaxLength:        envCfg.PostErrorMaxLength,
		MaxPlatformRetries:    envCfg.MaxPlatformRetries,
		RetryBaseDelayMinutes: envCfg.RetryBaseDelayMinutes,
		AlertChannelName:      envCfg.AlertChannelName,
	}
	return NewPublishOrchestrator(dalAttemptStore{}, dalIntegrationStore{}, drivers.GetDriver,
		SnsNotifier{}, NewMediaPreparer(), cfg)
}

// Orchestrate publishes one due attempt to every enabled platform. The
// platform publishes run concurrently; outcome application is serialized
// on the attempt row.
func (o *PublishOrchestrator) Orchestrate(ctx context.Context, post tables.ScheduledPost) []PublishOutcome {
	channels := post.EnabledChannels()
	if len(channels) == 0 {
		return nil
	}

	mediaUrl, mediaPath, cleanup, prepErr := o.preparer.Prepare(ctx, &post)
	if cleanup != nil {
		defer cleanup()
	}
	if prepErr != nil {
		log.Printf("correlationID: %s error preparing media: %s", post.PostID, prepErr)
	} else if err := o.posts.Save(post); err != nil {
		log.Printf("correlationID: %s error saving prepared attempt row: %s", post.PostID, err)
	}

	outcomes := make(chan PublishOutcome, len(channels))
	var wg sync.WaitGroup
	for _, channel := range channels {
		wg.Add(1)
		go func(channel tables.ChannelName) {
			defer wg.Done()
			outcomes <- o.publishOne(ctx, post, channel, mediaUrl, mediaPath, prepErr)
		}(channel)
	}
	wg.Wait()
	close(outcomes)

	results := []PublishOutcome{}
	for outcome := range outcomes {
		results = append(results, outcome)
	}
	// Single writer: apply all outcomes sequentially.
	for _, outcome := range results {
		o.applyOutcome(&post, outcome)
	}
	return results
}

func (o *PublishOrchestrator) publishOne(ctx context.Context, post tables.ScheduledPost,
	channel tables.ChannelName, mediaUrl string, mediaPath string, prepErr error) (outcome PublishOutcome) {
	outcome = PublishOutcome{Channel: channel}
	// One platform's crash must never abort the fan-out for the others.
	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("publisher panic: %v", r)
		}
	}()

	if prepErr != nil {
		outcome.Err = prepErr
		return outcome
	}

	integration, err := o.integrations.Get(post.AccountID, channel)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if integration.AccountID == "" {
		outcome.Err = &drivers.PermanentConfigError{
			Reason: fmt.Sprintf("(Re-)Authorize %s on Integrations page", channel),
		}
		return outcome
	}

	driver, err := o.newDriver(channel, integration)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	cmd := drivers.PublishCommand{
		PostID:    post.PostID,
		AccountID: post.AccountID,
		Text:      post.Description,
		MediaType: post.MediaFileType,
		MediaURL:  mediaUrl,
		MediaPath: mediaPath,
		TikTok:    post.TikTok,
	}

	if prober, ok := driver.(drivers.CreatorProbe); ok {
		info, err := prober.GetCreatorInfo(ctx)
		if err != nil {
			log.Printf("correlationID: %s %s capability probe failed: %s", post.PostID, channel, err)
			outcome.Err = err
			return outcome
		}
		cmd.TikTok = drivers.MergeCreatorInfo(cmd.TikTok, info)
		merged := cmd.TikTok
		outcome.TikTokOptions = &merged
	}

	link, err := driver.Publish(ctx, cmd)
	if err != nil {
		log.Printf("correlationID: %s %s publish error: %s", post.PostID, channel, err)
		outcome.Err = err
		return outcome
	}

	log.Printf("correlationID: %s %s post url: %s", post.PostID, channel, link)
	outcome.PermaLink = link
	return outcome
}

// applyOutcome closes the channel out on the current row and, on failure,
// creates the backoff clone or deletes the exhausted integration.
func (o *PublishOrchestrator) applyOutcome(post *tables.ScheduledPost, outcome PublishOutcome) {
	if outcome.TikTokOptions != nil {
		post.TikTok = *outcome.TikTokOptions
	}
	state := post.PlatformState(outcome.Channel)

	if outcome.Err == nil {
		state.ResultLink = outcome.PermaLink
		state.LastError = ""
		state.Enabled = false
		post.SetPlatformState(outcome.Channel, state)
		if err := o.posts.Save(*post); err != nil {
			log.Printf("correlationID: %s error saving success outcome for %s: %s", post.PostID, outcome.Channel, err)
		}
		return
	}

	errMsg := TruncateError(outcome.Err, o.cfg.ErrorMaxLength)
	state.LastError = errMsg
	state.Enabled = false
	post.SetPlatformState(outcome.Channel, state)
	if err := o.posts.Save(*post); err != nil {
		log.Printf("correlationID: %s error saving failure outcome for %s: %s", post.PostID, outcome.Channel, err)
	}

	o.notifier.Notify(o.cfg.AlertChannelName,
		fmt.Sprintf("AccountId: %s got error %s", post.AccountID, outcome.Err))

	if drivers.IsRevoked(outcome.Err) {
		// The platform rejected the credential outright; retrying cannot
		// help until the user re-authorizes.
		log.Printf("correlationID: %s %s integration revoked, deleting integration", post.PostID, outcome.Channel)
		if err := o.integrations.Delete(post.AccountID, outcome.Channel); err != nil {
			log.Printf("correlationID: %s error deleting %s integration: %s", post.PostID, outcome.Channel, err)
		}
		return
	}

	newRetryCount := state.RetryCount + 1
	if newRetryCount >= o.cfg.MaxPlatformRetries {
		// Budget exhausted: force re-authorization on the next manual
		// schedule instead of cloning forever.
		log.Printf("correlationID: %s %s retry budget exhausted (%d), deleting integration",
			post.PostID, outcome.Channel, newRetryCount)
		if err := o.integrations.Delete(post.AccountID, outcome.Channel); err != nil {
			log.Printf("correlationID: %s error deleting %s integration: %s", post.PostID, outcome.Channel, err)
		}
		return
	}

	clone := CloneForRetry(*post, outcome.Channel, errMsg, newRetryCount, o.cfg.RetryBaseDelayMinutes)
	if err := o.posts.Create(clone); err != nil {
		log.Printf("correlationID: %s error creating retry clone %s for %s: %s",
			post.PostID, clone.PostID, outcome.Channel, err)
		return
	}
	log.Printf("correlationID: %s %s retry %d scheduled as %s", post.PostID, outcome.Channel, newRetryCount, clone.PostID)
}

// CloneForRetry derives a fresh attempt row narrowed to exactly one
// channel's retry. Every other channel's state resets to baseline; the
// retried channel keeps its error and the incremented retry count.
func CloneForRetry(parent tables.ScheduledPost, channel tables.ChannelName, errMsg string,
	retryCount int, baseDelayMinutes int) tables.ScheduledPost {
	clone := parent
	clone.PostID = uuid.New().String()
	clone.CreatedAtEpochMilli = time.Now().UnixMilli()
	clone.ScheduledAtEpochMilli = parent.ScheduledAtEpochMilli + BackoffDelay(retryCount, baseDelayMinutes).Milliseconds()

	clone.Platforms = map[string]tables.PlatformState{}
	for _, c := range tables.AllChannels {
		if c == channel {
			clone.SetPlatformState(c, tables.PlatformState{
				Enabled:    true,
				LastError:  errMsg,
				RetryCount: retryCount,
			})
			continue
		}
		clone.SetPlatformState(c, tables.PlatformState{})
	}
	return clone
}

// BackoffDelay is the exponential retry delay: base * 2^(n-1) minutes for
// the n-th retry (5, 10, 20, 40, ... with the default base).
func BackoffDelay(retryCount int, baseDelayMinutes int) time.Duration {
	return time.Duration(baseDelayMinutes<<(retryCount-1)) * time.Minute
}

// TruncateError bounds the error string stored on the attempt row,
// slicing on runes so multi-byte text is never cut mid-character.
func TruncateError(err error, maxLen int) string {
	msg := err.Error()
	if maxLen <= 0 {
		return msg
	}
	runes := []rune(msg)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return msg
}

type dalAttemptStore struct{}

func (dalAttemptStore) Save(post tables.ScheduledPost) error {
	return dal.SaveScheduledPost(post)
}

func (dalAttemptStore) Create(post tables.ScheduledPost) error {
	return dal.CreateScheduledPost(post)
}

type dalIntegrationStore struct{}

func (dalIntegrationStore) Get(accountId string, platform tables.ChannelName) (tables.Integration, error) {
	return dal.GetIntegration(accountId, platform)
}

func (dalIntegrationStore) Delete(accountId string, platform tables.ChannelName) error {
	return dal.DeleteIntegration(accountId, platform)
}
