package gocelery

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// default transports
	_ "github.com/taoh/gocelery-client/backend/amqp"
	_ "github.com/taoh/gocelery-client/backend/redis"
	_ "github.com/taoh/gocelery-client/broker/nats"
	_ "github.com/taoh/gocelery-client/broker/rabbitmq"
	_ "github.com/taoh/gocelery-client/broker/redis"
)

// rootCmd is the root command, every other command needs to be attached to this command
var rootCmd = &cobra.Command{
	Use:   "gocelery",
	Short: "Gocelery is a celery task client written in Go",
	Long:  `A client for the celery distributed task queue: submit tasks to a broker and fetch their results from a result backend`,
	Run: func(cmd *cobra.Command, args []string) {

	},
}

var rootCmdV, cmdCall *cobra.Command
var configFile, logLevel, brokerUrl, backendUrl string
var taskArgs, taskKwargs string
var waitResult bool
var waitTimeout time.Duration
var debugMode bool

// Initializes flags
func init() {
	rootCmdV = rootCmd
}

func initializeConfig() {
	viper.SetConfigFile(configFile)
	log.Debug("Reading config: ", configFile)
	viper.SetDefault("BrokerUrl", "amqp://localhost")
	viper.SetDefault("BackendUrl", "redis://localhost:6379/0")
	viper.SetDefault("LogLevel", "error")
	viper.ReadInConfig()

	if cmdCall.PersistentFlags().Lookup("broker-url").Changed {
		viper.Set("BrokerUrl", brokerUrl)
	}
	if cmdCall.PersistentFlags().Lookup("backend-url").Changed {
		viper.Set("BackendUrl", backendUrl)
	}
	if cmdCall.PersistentFlags().Lookup("log-level").Changed {
		viper.Set("LogLevel", logLevel)
	}
	if debugMode {
		viper.Set("LogLevel", "debug")
	}
}

func installCommands() {
	cmdCall = &cobra.Command{
		Use:   "call [task name]",
		Short: "Submit a task",
		Long:  `Submit a task to the broker by name, with optional positional and keyword arguments.`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			// Initialize
			initializeConfig()

			// Run call command
			callCmd(cmd, args)
		},
	}
	cmdCall.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is path/config.yaml|json|toml)")
	cmdCall.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "debug mode")
	cmdCall.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "error", "log level, default is error. valid values: debug, info, warn, error, fatal")
	cmdCall.PersistentFlags().StringVarP(&brokerUrl, "broker-url", "b", "", "broker url")
	cmdCall.PersistentFlags().StringVarP(&backendUrl, "backend-url", "r", "", "result backend url")
	cmdCall.PersistentFlags().StringVarP(&taskArgs, "args", "a", "", "positional arguments, as a JSON array")
	cmdCall.PersistentFlags().StringVarP(&taskKwargs, "kwargs", "k", "", "keyword arguments, as a JSON object")
	cmdCall.PersistentFlags().BoolVarP(&waitResult, "wait", "w", false, "wait for the task result")
	cmdCall.PersistentFlags().DurationVarP(&waitTimeout, "timeout", "t", 30*time.Second, "how long to wait for the result with --wait")

	rootCmd.AddCommand(cmdCall)
}

// callCmd submits one task and optionally waits for its result.
func callCmd(cmd *cobra.Command, cmdArgs []string) {
	var args []interface{}
	if taskArgs != "" {
		if err := json.Unmarshal([]byte(taskArgs), &args); err != nil {
			log.Fatal("Invalid --args, expected a JSON array: ", err)
		}
	}
	var kwargs map[string]interface{}
	if taskKwargs != "" {
		if err := json.Unmarshal([]byte(taskKwargs), &kwargs); err != nil {
			log.Fatal("Invalid --kwargs, expected a JSON object: ", err)
		}
	}

	client := New(&Config{
		BrokerURL:  viper.GetString("BrokerUrl"),
		BackendURL: viper.GetString("BackendUrl"),
		LogLevel:   viper.GetString("LogLevel"),
	})
	defer client.Close()

	result, err := client.Delay(cmdArgs[0], args, kwargs)
	if err != nil {
		log.Fatal("Failed to submit task: ", err)
	}
	if err = client.Drain(waitTimeout); err != nil {
		log.Fatal("Failed to hand task to broker: ", err)
	}
	select {
	case derr := <-client.DispatchFailures():
		log.Fatal("Task dispatch failed: ", derr)
	default:
	}
	log.Info("Task sent: ", result.TaskID())

	if waitResult {
		value, err := result.Get(waitTimeout)
		if err != nil {
			log.Fatal("Failed to fetch task result: ", err)
		}
		log.Infof("Task result: %v", value)
	}
}

// Execute runs the client command line
func Execute() {
	installCommands()
	rootCmd.Execute()
}
