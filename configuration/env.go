package configuration

import (
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

type EnvConfigVals struct {
	S3MediaBucket      string `yaml:"S3MediaBucket"`
	MediaPublicBaseURL string `yaml:"MediaPublicBaseURL"`

	SNSAlertTopicArn string `yaml:"SNSAlertTopicArn"`
	AlertChannelName string `yaml:"AlertChannelName"`

	PollPeriodMilli int64 `yaml:"PollPeriodMilli"`
	MaxConsumers    int   `yaml:"MaxConsumers"`

	PostErrorMaxLength    int `yaml:"PostErrorMaxLength"`
	MaxPlatformRetries    int `yaml:"MaxPlatformRetries"`
	RetryBaseDelayMinutes int `yaml:"RetryBaseDelayMinutes"`

	ContainerPollSleepSec    int `yaml:"ContainerPollSleepSec"`
	ContainerPollMaxAttempts int `yaml:"ContainerPollMaxAttempts"`

	ImageCanvasWidth  int    `yaml:"ImageCanvasWidth"`
	ImageCanvasHeight int    `yaml:"ImageCanvasHeight"`
	ImageFontPath     string `yaml:"ImageFontPath"`

	PexelsEndpoint string `yaml:"PexelsEndpoint"`

	MaxRequestsXMinute         int64 `yaml:"MaxRequestsXMinute"`
	MaxRequestsLinkedInMinute  int64 `yaml:"MaxRequestsLinkedInMinute"`
	MaxRequestsFacebookMinute  int64 `yaml:"MaxRequestsFacebookMinute"`
	MaxRequestsInstagramMinute int64 `yaml:"MaxRequestsInstagramMinute"`
	MaxRequestsTikTokMinute    int64 `yaml:"MaxRequestsTikTokMinute"`
}

var configSync sync.Once
var EnvConfigs *EnvConfigVals

func GetEnvConfigs() *EnvConfigVals {
	if EnvConfigs != nil {
		return EnvConfigs
	}
	configSync.Do(func() {
		var configFile []byte
		var err error
		if os.Getenv("env") == "" || os.Getenv("env") != "prod" {
			configFile, err = os.ReadFile("./configuration/env-dev.yml")
		} else {
			configFile, err = os.ReadFile("./configuration/env-prod.yml")
		}

		if err != nil {
			log.Fatalf("failed to load config file: %s", err)
		}

		var vals EnvConfigVals
		err = yaml.Unmarshal(configFile, &vals)
		if err != nil {
			log.Fatalf("failed to unmarshall config file values: %s", err)
		}
		EnvConfigs = &vals
	})
	return EnvConfigs
}
