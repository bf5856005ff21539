package main

import (
	"context"
	"log"
	"net/http"

	config "github.com/imposting/publish-core/configuration"
	dynamo_configuration "github.com/imposting/publish-core/configuration/dynamo"
	handlers "github.com/imposting/publish-core/handlers"
	orchestration "github.com/imposting/publish-core/service/orchestration"
)

const route_health = "/health"
const route_schedule_post = "/v1/posts/schedule"

func main() {
	http.HandleFunc(route_health, handlers.HandlerHealthCheck)
	http.HandleFunc(route_schedule_post, handlers.HandlerSchedulePost)

	config.GetEnvConfigs()
	dynamo_configuration.Init()
	go orchestration.PollForDuePosts(context.Background())
	log.Fatal(http.ListenAndServe(":8080", nil))
}
