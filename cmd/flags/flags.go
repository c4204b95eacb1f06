package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/finsig/transaction-approval-backend/common"
	"github.com/finsig/transaction-approval-backend/httpserver"
)

// SetupLogger builds the process logger from the common logging flags.
func SetupLogger(cCtx *cli.Context) *slog.Logger {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ConfigureServer builds the HTTP server config from the common flags.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "transaction-approval",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var CommonFlags = []cli.Flag{
	ListenAddrFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
}
