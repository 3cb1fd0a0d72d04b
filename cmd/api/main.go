package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/tallyhq/tallycrm-backend/api/routes"
	"github.com/tallyhq/tallycrm-backend/internal/accounts"
	"github.com/tallyhq/tallycrm-backend/internal/assistant"
	"github.com/tallyhq/tallycrm-backend/internal/crm"
	"github.com/tallyhq/tallycrm-backend/internal/invoices"
	"github.com/tallyhq/tallycrm-backend/internal/payments"
	"github.com/tallyhq/tallycrm-backend/internal/subscriptions"
	"github.com/tallyhq/tallycrm-backend/internal/templates"
	stripewebhook "github.com/tallyhq/tallycrm-backend/internal/webhooks/stripe"
	"github.com/tallyhq/tallycrm-backend/pkg/config"
	"github.com/tallyhq/tallycrm-backend/pkg/db"
	"github.com/tallyhq/tallycrm-backend/pkg/email"
	"github.com/tallyhq/tallycrm-backend/pkg/llm"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
	"github.com/tallyhq/tallycrm-backend/pkg/migrate"
	"github.com/tallyhq/tallycrm-backend/pkg/redis"
	"github.com/tallyhq/tallycrm-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subscriptions.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Stripe:            subscriptions.NewStripeBillingClient(stripeClient),
		Prices:            stripeClient,
		SuccessURL:        cfg.App.BaseURL + "/billing/success",
		CancelURL:         cfg.App.BaseURL + "/billing/cancelled",
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	crmService, err := crm.NewService(crm.ServiceParams{
		Repo:              crm.NewRepository(dbClient.DB()),
		Limiter:           subscriptionsService,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create crm service", err)
		os.Exit(1)
	}

	accountsRepo := accounts.NewRepository(dbClient.DB())
	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Repo:              accountsRepo,
		TransactionRunner: dbClient,
		Bootstrappers:     []accounts.TenantBootstrapper{crmService, subscriptionsService},
		JWT:               cfg.JWT,
		Password:          cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	invoicesService, err := invoices.NewService(invoices.ServiceParams{
		Repo:              invoices.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Sender:            email.NewClient(cfg.Resend),
		Users:             accountsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoices service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:              payments.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	assistantService, err := assistant.NewService(assistant.ServiceParams{
		Repo:      assistant.NewRepository(dbClient.DB()),
		Generator: llm.NewClient(cfg.LLM),
		Quota:     subscriptionsService,
		Contacts:  crm.NewRepository(dbClient.DB()),
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assistant service", err)
		os.Exit(1)
	}

	templatesService, err := templates.NewService(templates.ServiceParams{
		Repo:              templates.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create templates service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Subscriptions: subscriptionsService,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:             cfg,
			Logger:             logg,
			DB:                 dbClient,
			Redis:              redisClient,
			Accounts:           accountsService,
			CRM:                crmService,
			Invoices:           invoicesService,
			Payments:           paymentsService,
			Subscriptions:      subscriptionsService,
			Assistant:          assistantService,
			Templates:          templatesService,
			StripeClient:       stripeClient,
			StripeWebhook:      stripeWebhookService,
			StripeWebhookGuard: webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
