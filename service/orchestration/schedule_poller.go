package orchestration

import (
	"context"
	"log"
	"sync"
	"time"

	config "github.com/imposting/publish-core/configuration"
	dal "github.com/imposting/publish-core/dal"
	tables "github.com/imposting/publish-core/dal/tables/v1"
)

// inFlight guards against double-dispatching a row across poll cycles;
// the scan can return a row again before its fan-out finishes.
var inFlight = struct {
	sync.Mutex
	postIds map[string]bool
}{postIds: map[string]bool{}}

// Should be started as background thread.
func PollForDuePosts(ctx context.Context) {
	orchestrator := DefaultPublishOrchestrator()
	workerSlots := make(chan struct{}, config.GetEnvConfigs().MaxConsumers)
	pollPeriod := time.Duration(config.GetEnvConfigs().PollPeriodMilli) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(pollPeriod):
		}
		if err := dispatchDuePosts(ctx, orchestrator, workerSlots); err != nil {
			log.Printf("failed to poll due posts: %s", err)
		}
	}
}

func dispatchDuePosts(ctx context.Context, orchestrator *PublishOrchestrator, workerSlots chan struct{}) error {
	duePosts, err := dal.QueryDuePosts(time.Now().UnixMilli())
	if err != nil {
		return err
	}
	for _, post := range duePosts {
		if !claim(post.PostID) {
			continue
		}
		workerSlots <- struct{}{}
		go func(post tables.ScheduledPost) {
			defer func() {
				<-workerSlots
				release(post.PostID)
			}()
			log.Printf("correlationID: %s starting publish fan-out", post.PostID)
			orchestrator.Orchestrate(ctx, post)
		}(post)
	}
	return nil
}

func claim(postId string) bool {
	inFlight.Lock()
	defer inFlight.Unlock()
	if inFlight.postIds[postId] {
		return false
	}
	inFlight.postIds[postId] = true
	return true
}

func release(postId string) {
	inFlight.Lock()
	defer inFlight.Unlock()
	delete(inFlight.postIds, postId)
}
