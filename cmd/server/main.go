package main

import (
	"github.com/skeinhq/skein/backend/internal/server"
	"github.com/skeinhq/skein/backend/internal/util"
	"github.com/skeinhq/skein/backend/pkg/logger"
	"github.com/skeinhq/skein/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
