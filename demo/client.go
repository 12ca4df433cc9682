//go:build ignore
// +build ignore

package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/taoh/gocelery-client"
)

func main() {
	log.Info("Submitting a task and waiting for its result")
	i := 13
	j := 12
	args := []interface{}{i, j}

	client := gocelery.New(&gocelery.Config{
		LogLevel: "debug",
	})
	defer client.Close()

	result, err := client.Delay("tasks.add", args, nil)
	if err != nil {
		log.Fatal("Failed to submit task: ", err)
	}
	log.Info("Task sent: ", result.TaskID())

	// wait until the message has reached the broker
	if err = client.Drain(10 * time.Second); err != nil {
		log.Fatal("Failed to hand task to broker: ", err)
	}

	value, err := result.Get(30 * time.Second)
	if err != nil {
		log.Fatal("Failed to fetch task result: ", err)
	}
	log.Infof("The workers computed: %d + %d = %v", i, j, value)
}
