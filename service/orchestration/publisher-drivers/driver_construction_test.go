package publisherdrivers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	env "github.com/imposting/publish-core/configuration"
	tables "github.com/imposting/publish-core/dal/tables/v1"
)

func init() {
	env.EnvConfigs = &env.EnvConfigVals{
		ContainerPollSleepSec:    1,
		ContainerPollMaxAttempts: 20,
	}
}

func fullIntegration(channel tables.ChannelName) tables.Integration {
	return tables.Integration{
		AccountID:   "account-1",
		Platform:    channel,
		UserID:      "user-1",
		AccessToken: "token",
		Username:    "someone",
	}
}

func TestGetDriverCoversEveryChannel(t *testing.T) {
	for _, channel := range tables.AllChannels {
		driver, err := GetDriver(channel, fullIntegration(channel))
		require.NoError(t, err, string(channel))
		assert.NotNil(t, driver)
	}
}

func TestGetDriverUnknownChannel(t *testing.T) {
	_, err := GetDriver(tables.ChannelName("Myspace"), fullIntegration("Myspace"))
	assert.Error(t, err)
}

func TestDriversRejectMissingAccessToken(t *testing.T) {
	for _, channel := range tables.AllChannels {
		integration := fullIntegration(channel)
		integration.AccessToken = ""
		_, err := GetDriver(channel, integration)
		require.Error(t, err, string(channel))
		assert.True(t, IsPermanent(err), string(channel))
	}
}

func TestInstagramRequiresPageId(t *testing.T) {
	integration := fullIntegration(tables.Channel_Instagram)
	integration.UserID = ""
	_, err := NewInstagramDriver(integration)
	assert.ErrorIs(t, err, ErrPageIdNotProvided)
}

func TestReelPollBudgetScalesWithSize(t *testing.T) {
	assert.Equal(t, 10, ReelPollBudget(0))
	assert.Equal(t, 10, ReelPollBudget(4))
	assert.Equal(t, 16, ReelPollBudget(8))
	assert.Equal(t, 100, ReelPollBudget(50))
}

func TestTransientNetworkErrorFormat(t *testing.T) {
	err := &TransientNetworkError{Op: "facebook feed", StatusCode: 403, Err: fmt.Errorf("denied")}
	assert.Equal(t, "facebook feed: status 403: denied", err.Error())
	assert.False(t, IsPermanent(err))
}
