package app

import (
	"context"

	"github.com/murmurchat/murmur/internal/bus"
	"github.com/murmurchat/murmur/internal/config"
	"github.com/murmurchat/murmur/internal/lock"
	"github.com/murmurchat/murmur/internal/logging"
	"github.com/murmurchat/murmur/internal/paths"
	"github.com/murmurchat/murmur/internal/playback"
	"github.com/murmurchat/murmur/internal/selection"
	"github.com/murmurchat/murmur/internal/session"
	"github.com/murmurchat/murmur/internal/store"
	"github.com/murmurchat/murmur/internal/token"
	"github.com/murmurchat/murmur/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	BaseURL string // optional override; empty = use config
	Loader  playback.Loader
}

// Stores bundles the resettable state owned by the app, exposed so a UI
// layer embedding the module can read from it.
type Stores struct {
	fx.Out

	Messages      *store.Store
	Chats         *store.ChatStore
	ChatSelect    *selection.Set
	MessageSelect *selection.MessageSelection
	Playback      *playback.Manager
}

// Module composes the conversation core: transport, stores, selection,
// playback and the session controller.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideConfig,
			provideTokens,
			provideLock,
			provideClient,
			provideStores,
			provideController,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(paths.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", zap.String("base_url", cfg.BaseURL))
	return cfg, nil
}

func provideTokens(p Params) *token.Store {
	return token.NewStore(paths.TokenPath(p.Profile))
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := paths.EnsureProfile(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(paths.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideClient(p Params, cfg *config.Config, tokens *token.Store, logger *zap.Logger) *transport.Client {
	base := cfg.BaseURL
	if p.BaseURL != "" {
		base = p.BaseURL
	}
	return transport.NewClient(base, tokens, logger)
}

func provideStores(p Params, client *transport.Client, b *bus.Bus, logger *zap.Logger) Stores {
	loader := p.Loader
	if loader == nil {
		loader = playback.Unsupported{}
	}
	return Stores{
		Messages:      store.NewStore(client, b, logger),
		Chats:         store.NewChatStore(client, b, logger),
		ChatSelect:    selection.NewSet(),
		MessageSelect: selection.NewMessageSelection(""),
		Playback:      playback.NewManager(loader, b, logger),
	}
}

func provideController(
	client *transport.Client,
	tokens *token.Store,
	messages *store.Store,
	chats *store.ChatStore,
	chatSel *selection.Set,
	msgSel *selection.MessageSelection,
	b *bus.Bus,
	logger *zap.Logger,
) *session.Controller {
	registry := session.Registry{
		session.DomainMessages:         messages,
		session.DomainChats:            chats,
		session.DomainChatSelection:    chatSel,
		session.DomainMessageSelection: msgSel,
	}
	selfs := []session.SelfAware{chats, msgSel}
	return session.NewController(client, tokens, registry, selfs, b, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	ctrl *session.Controller,
	chats *store.ChatStore,
	player *playback.Manager,
	lk *lock.Lock,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			chats.Start(context.Background())

			route, err := ctrl.Initialize(context.Background(), "")
			if err != nil {
				logger.Warn("session restore failed", zap.Error(err))
			}
			logger.Info("session initialized",
				zap.String("status", string(ctrl.Status())),
				zap.String("route", string(route)))
			return nil
		},
		OnStop: func(_ context.Context) error {
			player.Stop()
			chats.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing profile lock", zap.Error(err))
			}
			logger.Info("stopped")
			return nil
		},
	})
}
