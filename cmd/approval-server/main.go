// The approval-server command serves the multi-party transaction approval
// API: TOTP enrollment, threshold transaction creation with secret share
// distribution, and signature collection.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/finsig/transaction-approval-backend/approval"
	"github.com/finsig/transaction-approval-backend/cmd/flags"
	"github.com/finsig/transaction-approval-backend/httpserver"
	"github.com/finsig/transaction-approval-backend/interfaces"
	"github.com/finsig/transaction-approval-backend/storage"
	"github.com/finsig/transaction-approval-backend/totp"
)

var serverFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "totp-issuer",
		Value: "MultiSigner",
		Usage: "issuer shown in authenticator apps",
	},
	&cli.Int64Flag{
		Name:  "expiry-sweep-seconds",
		Value: 60,
		Usage: "interval between expired-transaction sweeps, 0 disables",
	},
	&cli.StringFlag{
		Name:  "audit-file",
		Value: "",
		Usage: "path to an append-only JSONL audit log file",
	},
	&cli.StringFlag{
		Name:  "s3-audit-bucket",
		Value: "",
		Usage: "S3 bucket for audit entry archival, empty disables",
	},
	&cli.StringFlag{
		Name:  "s3-prefix",
		Value: "audit",
		Usage: "S3 key prefix for audit objects",
	},
	&cli.StringFlag{
		Name:  "s3-region",
		Value: "us-east-1",
		Usage: "S3 region",
	},
	&cli.StringFlag{
		Name:  "s3-endpoint",
		Value: "",
		Usage: "custom S3 endpoint, for MinIO or localstack",
	},
	&cli.StringFlag{
		Name:    "s3-access-key",
		Value:   "",
		Usage:   "S3 access key",
		EnvVars: []string{"S3_ACCESS_KEY"},
	},
	&cli.StringFlag{
		Name:    "s3-secret-key",
		Value:   "",
		Usage:   "S3 secret key",
		EnvVars: []string{"S3_SECRET_KEY"},
	},
	&cli.StringFlag{
		Name:    "vault-addr",
		Value:   "",
		Usage:   "Vault address for TOTP secret storage, empty keeps secrets in the identity store",
		EnvVars: []string{"VAULT_ADDR"},
	},
	&cli.StringFlag{
		Name:    "vault-token",
		Value:   "",
		Usage:   "Vault token",
		EnvVars: []string{"VAULT_TOKEN"},
	},
	&cli.StringFlag{
		Name:  "vault-mount",
		Value: "secret",
		Usage: "Vault KV v2 mount path",
	},
	&cli.StringFlag{
		Name:  "vault-path",
		Value: "approval",
		Usage: "path under the Vault mount for TOTP secrets",
	},
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "approval-server",
		Usage:  "Serve the multi-party transaction approval API",
		Flags:  serverFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg := flags.ConfigureServer(cCtx, logger)

	identities := storage.NewInMemoryIdentityStore()
	transactions := storage.NewInMemoryTransactionStore()

	// The in-memory sink backs the audit API; file and S3 sinks are
	// durability add-ons behind the same fan-out.
	memorySink := storage.NewMemoryAuditSink()
	sinks := []interfaces.AuditSink{memorySink}

	if auditFile := cCtx.String("audit-file"); auditFile != "" {
		fileSink, err := storage.NewFileAuditSink(auditFile, logger)
		if err != nil {
			logger.Error("Failed to open audit log file", "err", err)
			return err
		}
		defer fileSink.Close()
		sinks = append(sinks, fileSink)
		logger.Info("Audit log file enabled", "path", auditFile)
	}

	if bucket := cCtx.String("s3-audit-bucket"); bucket != "" {
		archiver, err := storage.NewS3AuditArchiver(
			bucket,
			cCtx.String("s3-prefix"),
			cCtx.String("s3-region"),
			cCtx.String("s3-endpoint"),
			cCtx.String("s3-access-key"),
			cCtx.String("s3-secret-key"),
			logger,
		)
		if err != nil {
			logger.Error("Failed to create S3 audit archiver", "err", err)
			return err
		}
		if !archiver.Available(cCtx.Context) {
			logger.Warn("S3 audit bucket is not reachable", "bucket", bucket)
		}
		sinks = append(sinks, archiver)
		logger.Info("S3 audit archival enabled", "bucket", bucket)
	}

	var secrets interfaces.SecretStore
	if vaultAddr := cCtx.String("vault-addr"); vaultAddr != "" {
		vaultStore, err := storage.NewVaultSecretStore(
			vaultAddr,
			cCtx.String("vault-token"),
			cCtx.String("vault-mount"),
			cCtx.String("vault-path"),
			logger,
		)
		if err != nil {
			logger.Error("Failed to create Vault secret store", "err", err)
			return err
		}
		secrets = vaultStore
		logger.Info("Vault TOTP secret storage enabled", "address", vaultAddr)
	}

	engine := totp.New()
	engine.Issuer = cCtx.String("totp-issuer")

	machine := approval.NewMachine(transactions, identities, storage.NewMultiAuditSink(sinks...), logger)
	coordinator := approval.NewCoordinator(machine, identities, secrets, engine, logger)

	handler := httpserver.NewHandler(coordinator, transactions, memorySink, logger)
	server, err := httpserver.New(cfg, handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sweepSeconds := cCtx.Int64("expiry-sweep-seconds"); sweepSeconds > 0 {
		go runExpirySweep(ctx, machine, time.Duration(sweepSeconds)*time.Second, logger)
	}

	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	cancel()
	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}

// runExpirySweep periodically rejects transactions whose expiry has passed.
func runExpirySweep(ctx context.Context, machine *approval.Machine, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired, err := machine.ExpireSweep(ctx, now)
			if err != nil {
				logger.Error("Expiry sweep failed", "err", err)
				continue
			}
			if expired > 0 {
				logger.Info("Expired transactions swept", "count", expired)
			}
		}
	}
}
