// halobot is a conversational commerce agent: it runs a small business's
// order lifecycle over WhatsApp, SMS, and web chat.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"halobot/handlers"
	"halobot/pkg/catalog"
	"halobot/pkg/composer"
	"halobot/pkg/config"
	"halobot/pkg/conversation"
	"halobot/pkg/engine"
	"halobot/pkg/intent"
	"halobot/pkg/llm"
	"halobot/pkg/logx"
	"halobot/pkg/loyalty"
	"halobot/pkg/notify"
	"halobot/pkg/orders"
	"halobot/pkg/persistence"
	"halobot/pkg/proto"
	"halobot/pkg/reminder"
	"halobot/pkg/version"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to business profile YAML")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("HALOBOT_CONFIG")
	}
	if configPath == "" {
		configPath = "halobot.yaml"
	}

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "halobot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger := logx.NewLogger("halobot")

	if err := config.Load(configPath); err != nil {
		return err
	}
	cfg, err := config.Get()
	if err != nil {
		return err
	}

	if err := persistence.Initialize(cfg.DBPath); err != nil {
		return err
	}
	defer func() {
		if err := persistence.Close(); err != nil {
			logger.Error("database close failed: %v", err)
		}
	}()

	store := persistence.Ops()
	if err := store.UpsertBusiness(&persistence.Business{
		ID:         cfg.Business.ID,
		Name:       cfg.Business.Name,
		OwnerPhone: cfg.Business.OwnerPhone,
	}); err != nil {
		return fmt.Errorf("failed to register business: %w", err)
	}

	cat := catalog.New(cfg.Business.Catalog)

	client, err := llm.NewClientFromConfig(&cfg)
	if err != nil {
		return err
	}
	logger.Info("LLM composer backed by %s", client.GetModelName())

	dispatcher := notify.NewDispatcher(store)
	if cfg.GatewayURL != "" {
		dispatcher.Register(notify.NewGatewaySender(cfg.GatewayURL, cfg.GatewayAPIKey, proto.ChannelWhatsApp))
		dispatcher.Register(notify.NewGatewaySender(cfg.GatewayURL, cfg.GatewayAPIKey, proto.ChannelSMS))
	} else {
		logger.Warn("No gateway configured; WhatsApp and SMS delivery is console-only")
		dispatcher.Register(notify.NewConsoleSender(proto.ChannelWhatsApp))
		dispatcher.Register(notify.NewConsoleSender(proto.ChannelSMS))
	}
	dispatcher.Register(notify.NewConsoleSender(proto.ChannelWeb))

	loyaltySvc := loyalty.NewService(store, cfg.Loyalty)
	orderSvc := orders.NewService(store, dispatcher, loyaltySvc, cfg)
	comp := composer.New(client, cat, cfg)
	builder := conversation.NewBuilder(store, cfg.Engine.HistoryTurns, cfg.Engine.ContextTokenBudget)
	eng := engine.New(store, builder, intent.NewClassifier(cat), cat, comp, orderSvc, dispatcher, loyaltySvc, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reminders := reminder.NewScheduler(store, dispatcher, cfg)
	if err := reminders.Start(); err != nil {
		return err
	}
	defer reminders.Stop()

	logger.Info("🤖 halobot %s (%s): %s is open for business", version.Version, version.Commit, cfg.Business.Name)

	server := handlers.NewServer(eng, store, orderSvc, cfg)
	return server.StartServer(ctx, cfg.ListenAddr)
}
