package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/tee-dataroom-backend/api"
	"github.com/ruteri/tee-dataroom-backend/common"
)

// SetupLogger builds the process logger from the shared logging flags.
func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ConfigureServer builds the gateway server config from the shared server
// flags.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var AppFlag = &cli.StringFlag{
	Name:  "app",
	Value: common.DefaultApp,
	Usage: "application identifier the contract serves",
}

var IdentityFlag = &cli.StringFlag{
	Name:     "identity",
	Required: true,
	Usage:    "sender identity transactions run as",
}

var GatewayAddrFlag = &cli.StringFlag{
	Name:  "gateway-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "gateway base URL to connect to",
}

var DiscoverFlag = &cli.StringFlag{
	Name:  "discover",
	Usage: "service domain to resolve the gateway from via DNS SRV, overrides gateway-addr",
}

var DNSServerFlag = &cli.StringFlag{
	Name:  "dns-server",
	Usage: "DNS server for SRV discovery, defaults to the local resolver stub",
}

var LedgerFlag = &cli.StringFlag{
	Name:  "ledger",
	Value: "file:///var/lib/dataroom/ledger",
	Usage: "ledger backend URI (memory://, file://, badger://, vault://, s3://)",
}

var FileStoreFlag = &cli.StringFlag{
	Name:  "file-store",
	Value: "file:///var/lib/dataroom/files",
	Usage: "room file store URI (file://, ipfs://)",
}

var MasterKeySeedFlag = &cli.StringFlag{
	Name:     "master-key-seed",
	Required: true,
	Usage:    "hex-encoded 32-byte seed sealing key material at rest",
}

var AttestationTypeFlag = &cli.StringFlag{
	Name:  "attestation-type",
	Value: "dummy",
	Usage: "attestation provider: 'dummy', 'qemu-tdx' or 'remote'",
}

var AttestationAddrFlag = &cli.StringFlag{
	Name:  "attestation-addr",
	Usage: "quoting service address (required if attestation-type is 'remote')",
}

var LocalFlag = &cli.BoolFlag{
	Name:  "local",
	Usage: "run against an in-process contract runtime instead of a gateway",
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

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
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
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
