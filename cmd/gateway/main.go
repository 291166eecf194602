package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/tee-dataroom-backend/attestation"
	"github.com/ruteri/tee-dataroom-backend/cmd/flags"
	"github.com/ruteri/tee-dataroom-backend/filestore"
	"github.com/ruteri/tee-dataroom-backend/gateway"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/ruteri/tee-dataroom-backend/keystore"
	"github.com/ruteri/tee-dataroom-backend/ledger"
)

var listenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

func main() {
	app := &cli.App{
		Name:  "dataroom-gateway",
		Usage: "Serve the data room contract API",
		Flags: append([]cli.Flag{
			listenAddrFlag,
			flags.AppFlag,
			flags.LedgerFlag,
			flags.FileStoreFlag,
			flags.MasterKeySeedFlag,
			flags.AttestationTypeFlag,
			flags.AttestationAddrFlag,
			flags.LogServiceFlagFn("dataroom-gateway"),
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			appID, err := interfaces.NewAppID(cCtx.String(flags.AppFlag.Name))
			if err != nil {
				logger.Error("Invalid application identifier", "err", err)
				return err
			}

			seed, err := hex.DecodeString(cCtx.String(flags.MasterKeySeedFlag.Name))
			if err != nil || len(seed) != 32 {
				logger.Error("Invalid master-key-seed - must be 64 hex chars (32 bytes)", "err", err)
				return fmt.Errorf("invalid master-key-seed: %v", err)
			}
			store, err := keystore.NewKeyStore(seed)
			if err != nil {
				logger.Error("Failed to create key store", "err", err)
				return err
			}

			ledgerLocation, err := interfaces.NewStoreLocation(cCtx.String(flags.LedgerFlag.Name))
			if err != nil {
				logger.Error("Invalid ledger URI", "err", err)
				return err
			}
			led, err := ledger.NewLedgerFactory(logger).LedgerFor(ledgerLocation)
			if err != nil {
				logger.Error("Failed to create ledger backend", "err", err)
				return err
			}

			fileLocation, err := interfaces.NewStoreLocation(cCtx.String(flags.FileStoreFlag.Name))
			if err != nil {
				logger.Error("Invalid file store URI", "err", err)
				return err
			}
			files, err := filestore.NewFileStoreFactory(logger).StoreFor(fileLocation)
			if err != nil {
				logger.Error("Failed to create file store", "err", err)
				return err
			}

			provider, err := attestation.NewProvider(
				cCtx.String(flags.AttestationTypeFlag.Name),
				cCtx.String(flags.AttestationAddrFlag.Name))
			if err != nil {
				logger.Error("Failed to create attestation provider", "err", err)
				return err
			}

			handler := gateway.NewHandler(appID, led, store, files, provider, logger)

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(listenAddrFlag.Name))
			srv, err := gateway.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting gateway",
				"app", appID.String(),
				"ledger", ledgerLocation.String(),
				"fileStore", fileLocation.String(),
				"attestation", string(provider.Type()))
			srv.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			srv.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
