package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	dal "github.com/imposting/publish-core/dal"
	tables "github.com/imposting/publish-core/dal/tables/v1"
	requestModels "github.com/imposting/publish-core/service/models"
)

const wallClockLayout = "2006-01-02T15:04"

// Media uploaded alongside a schedule call may still be propagating, so
// the earliest effective publish time is pushed out by this margin.
const minScheduleLeadMinutes = 5

func HandlerHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Ok")
}

func HandlerSchedulePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Route must be called with POST, given %s", r.Method)
		return
	}

	decoder := json.NewDecoder(r.Body)
	var payload requestModels.SchedulePostRequest
	if err := decoder.Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "malformed schedule payload: %s", err)
		return
	}
	if payload.AccountID == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "accountId is required")
		return
	}

	post, err := buildScheduledPost(payload)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "%s", err.Error())
		return
	}

	if err := dal.CreateScheduledPost(post); err != nil {
		log.Printf("correlationID: %s error persisting scheduled post: %s", post.PostID, err)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "failed to persist scheduled post")
		return
	}
	log.Printf("correlationID: %s scheduled for %d across %d platforms",
		post.PostID, post.ScheduledAtEpochMilli, len(post.EnabledChannels()))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(requestModels.SchedulePostResponse{
		PostID:      post.PostID,
		ScheduledAt: post.ScheduledAtEpochMilli,
	})
}

func buildScheduledPost(payload requestModels.SchedulePostRequest) (tables.ScheduledPost, error) {
	post := tables.ScheduledPost{
		PostID:              uuid.New().String(),
		AccountID:           payload.AccountID,
		CreatedAtEpochMilli: time.Now().UnixMilli(),
		PostTimezone:        payload.Timezone,
		Description:         payload.Description,
		MediaLookupKey:      payload.MediaLookupKey,
		ProcessImage:        payload.ProcessImage,
	}

	for _, name := range payload.Platforms {
		channel, err := tables.GetChannelNameFromString(name)
		if err != nil {
			return post, err
		}
		post.SetPlatformState(channel, tables.PlatformState{Enabled: true})
	}

	scheduledAt, err := resolveScheduledAt(payload.ScheduledAt, payload.Timezone)
	if err != nil {
		return post, err
	}
	post.ScheduledAtEpochMilli = scheduledAt

	if payload.TikTok != nil {
		post.TikTok = tables.TikTokOptions{
			Nickname:             payload.TikTok.Nickname,
			PrivacyLevel:         tables.TikTokPrivacyLevel(payload.TikTok.PrivacyLevel),
			AllowComment:         payload.TikTok.AllowComment,
			AllowDuet:            payload.TikTok.AllowDuet,
			AllowStitch:          payload.TikTok.AllowStitch,
			DiscloseVideoContent: payload.TikTok.DiscloseVideoContent,
			YourBrand:            payload.TikTok.YourBrand,
			BrandedContent:       payload.TikTok.BrandedContent,
			AIGenerated:          payload.TikTok.AIGenerated,
		}
	}

	if err := post.Validate(); err != nil {
		return post, err
	}
	return post, nil
}

// resolveScheduledAt converts the user's wall-clock time to a UTC instant
// and bumps times already in the past up to the minimum lead.
func resolveScheduledAt(wallClock string, timezone string) (int64, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return 0, fmt.Errorf("invalid timezone: %s", timezone)
	}
	localTime, err := time.ParseInLocation(wallClockLayout, wallClock, location)
	if err != nil {
		return 0, fmt.Errorf("invalid scheduled time %s, expected %s", wallClock, wallClockLayout)
	}

	earliest := time.Now().Add(minScheduleLeadMinutes * time.Minute)
	if localTime.Before(earliest) {
		return earliest.UnixMilli(), nil
	}
	return localTime.UnixMilli(), nil
}
