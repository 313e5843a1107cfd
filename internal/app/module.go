// Package app composes the client: config, logging, profile lock, document
// store connection, identity and the session state machine, wired through fx
// so every command runs against the same object graph.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/jk08y/real-time-chat-app/internal/bus"
	"github.com/jk08y/real-time-chat-app/internal/config"
	"github.com/jk08y/real-time-chat-app/internal/docstore"
	"github.com/jk08y/real-time-chat-app/internal/filestore"
	"github.com/jk08y/real-time-chat-app/internal/identity"
	"github.com/jk08y/real-time-chat-app/internal/lock"
	"github.com/jk08y/real-time-chat-app/internal/logging"
	"github.com/jk08y/real-time-chat-app/internal/profile"
	"github.com/jk08y/real-time-chat-app/internal/status"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideIdentity,
			provideFileStore,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		// Missing or malformed file falls back to defaults.
		return config.Default()
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, logger *zap.Logger) (docstore.Store, error) {
	store, err := docstore.NewRedisStore(context.Background(), docstore.RedisOptions{
		Addr:     cfg.Store.Addr,
		Password: cfg.Store.Password,
		DB:       cfg.Store.DB,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("document store connected", zap.String("addr", cfg.Store.Addr))
	return store, nil
}

func provideIdentity(p Params, store docstore.Store, logger *zap.Logger) *identity.Service {
	return identity.NewService(store, logger, profile.SessionPath(p.Profile))
}

func provideFileStore(p Params) (filestore.Store, error) {
	return filestore.NewLocal(profile.AvatarDir(p.Profile))
}

func registerLifecycle(lc fx.Lifecycle, ids *identity.Service, store docstore.Store, lk *lock.Lock, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := ids.Restore(ctx); err != nil {
				logger.Warn("session restore failed", zap.Error(err))
			}
			if p := ids.Current(); p != nil {
				_ = machine.Transition(status.Connecting)
				if err := ids.SetPresence(ctx, true); err != nil {
					logger.Error("presence publish failed", zap.Error(err))
					_ = machine.Transition(status.Error)
					return err
				}
				_ = machine.Transition(status.Ready)
				logger.Info("session restored", zap.String("uid", p.ID))
			} else {
				logger.Info("no remembered principal, auth required")
				_ = machine.Transition(status.AuthRequired)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Going offline on exit is best effort; a killed process leaves
			// the flag set until the next clean sign-in or sign-out.
			if err := ids.SetPresence(ctx, false); err != nil {
				logger.Warn("offline write failed on shutdown", zap.Error(err))
			}
			if err := store.Close(); err != nil {
				logger.Warn("store close", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
