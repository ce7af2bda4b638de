package main

import (
	"fmt"
	"os"

	"github.com/Project-OSmOSE/osmose-app-sub000/cmd"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/buildinfo"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/telemetry"
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	centralLogger, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		return 1
	}
	logger.SetGlobal(centralLogger)
	defer func() {
		_ = centralLogger.Close()
	}()

	if err := telemetry.Init(&settings.Sentry, buildinfo.Current().GetVersion()); err != nil {
		centralLogger.Module("main").Warn("telemetry disabled", logger.Error(err))
	}
	defer telemetry.Close()

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command execution error: %v\n", err)
		return 1
	}
	return 0
}
