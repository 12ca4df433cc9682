//go:build ignore
// +build ignore

package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/taoh/gocelery-client"
)

func main() {
	log.Info("Scheduling tasks")

	done := make(chan struct{})

	client := gocelery.New(&gocelery.Config{
		LogLevel: "debug",
	})
	defer client.Close()

	i := 13
	j := 12
	taskArgs := []interface{}{i, j}
	if _, err := client.DelayWithSchedule("*/5 * * * *", "tasks.add", taskArgs, nil); err != nil {
		log.Error("Failed to schedule task: ", err)
	}

	log.Info("Scheduler started")
	<-done
}
