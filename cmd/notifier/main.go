package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"lodge_billing_notifier/internal/app"
	"lodge_billing_notifier/internal/infra/broker"
	"lodge_billing_notifier/internal/infra/config"
	idb "lodge_billing_notifier/internal/infra/database"
	"lodge_billing_notifier/internal/infra/dispatch"
	"lodge_billing_notifier/internal/infra/email"
	"lodge_billing_notifier/internal/infra/httpapi"
	"lodge_billing_notifier/internal/infra/lock"
	"lodge_billing_notifier/internal/infra/logger"
	"lodge_billing_notifier/internal/infra/metrics"
	"lodge_billing_notifier/internal/infra/scheduler"
	"lodge_billing_notifier/internal/infra/telegram"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Environment}); err != nil {
			logrus.Fatalf("FATAL: Could not initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
		"timezone":    cfg.Location.String(),
		"dry_run":     cfg.DryRun,
	}).Info("Lodge billing notifier starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.WithError(err).Fatal("Could not apply database schema")
	}
	mainLogger.Info("Database connection established successfully.")

	// Initialize Repositories
	ruleRepo := idb.NewPostgresRuleRepository(db)
	billingRepo := idb.NewPostgresBillingRepository(db)
	ledgerRepo := idb.NewPostgresLedgerRepository(db)
	templateRepo := idb.NewPostgresTemplateRepository(db)

	var passLock app.PassLock
	if cfg.RedisURL != "" {
		redisClient, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to Redis")
		}
		defer redisClient.Close()
		passLock = lock.NewRedisLock(redisClient, "", cfg.PassLockTTL)
		mainLogger.Info("Using Redis pass lock.")
	} else {
		passLock = lock.NewLocalLock()
		mainLogger.Info("REDIS_URL not set; using in-process pass lock.")
	}

	// Transports. Interfaces stay untyped nil when a transport is not configured.
	var emailSender dispatch.EmailSender
	if cfg.SMTPHost != "" {
		emailSender = email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFromEmail, cfg.SMTPFromName)
	} else {
		mainLogger.Warn("SMTP_HOST not set; email notifications will be recorded as failed.")
	}
	var publisher dispatch.Publisher
	if cfg.AMQPURL != "" {
		p, err := broker.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to message broker")
		}
		defer p.Close()
		publisher = p
	} else {
		mainLogger.Warn("AMQP_URL not set; SMS, WhatsApp and push notifications will be recorded as failed.")
	}

	emitter := dispatch.NewEmitter(templateRepo, emailSender, publisher, cfg.SMTPFromName, logger.Component("dispatch"))
	passMetrics := metrics.NewPassMetrics(prometheus.DefaultRegisterer, metrics.Config{ServiceName: "lodge_billing_notifier", Environment: cfg.Environment})

	notifService := app.NewNotificationServiceImpl(
		ruleRepo,
		billingRepo,
		billingRepo,
		ledgerRepo,
		emitter,
		passLock,
		passMetrics,
		app.PassSettings{Location: cfg.Location, DryRun: cfg.DryRun, LedgerRetention: cfg.LedgerRetention},
		logger.Component("notification_service"),
	)
	adminService := app.NewAdminService(ruleRepo, ledgerRepo, cfg.AdminTelegramID)

	// Initialize Telegram Bot
	var bot *telebot.Bot
	var alerter scheduler.Alerter
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID)
				}
				entry.Error("Telebot error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		telegram.RegisterBotCommands(bot, cfg, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot, telegram.AdminHandlerDeps{
			AdminService: adminService,
			NotifService: notifService,
			Location:     cfg.Location,
			PassTimeout:  cfg.PassTimeout,
		}, botLogger)
		alerter = telegram.NewAlerter(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID)
		mainLogger.Info("Telegram command handlers registered.")
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN not set; admin bot and operator alerts disabled.")
	}

	// Initialize NotificationScheduler
	notifScheduler := scheduler.NewNotificationScheduler(
		notifService,
		alerter,
		passMetrics,
		logger.Component("scheduler"),
		cfg.Location,
		cfg.CronSpecEvaluate,
		cfg.CronSpecLedgerPrune,
		cfg.PassTimeout,
	)
	if err := notifScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	var server *http.Server
	if cfg.HTTPAddr != "" {
		handler := httpapi.NewHandler(adminService, notifService, db, cfg.PassTimeout, logger.Component("http"))
		server = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(handler, cfg.JWTSecret, promhttp.Handler()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				mainLogger.WithError(err).Error("HTTP server stopped")
				stop()
			}
		}()
	}

	if bot != nil {
		go bot.Start()
	}
	mainLogger.Info("Application setup complete.")

	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("HTTP server shutdown failed")
		}
	}
	notifScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
