package main

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/config"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/pages"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
)

// shutdownGrace bounds closing backend clients after the server stopped.
const shutdownGrace = 5 * time.Second

// backends are the identity, profile and settings sources the server reads.
type backends struct {
	verifier session.Verifier
	profiles session.ProfileStore
	admins   session.AdminDirectory
	members  pages.MemberLister
	settings settings.Provider
	closers  []func() error
}

func (b *backends) Close(logger *zap.Logger) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(b.closers) - 1; i >= 0; i-- {
			if err := b.closers[i](); err != nil {
				logger.Warn("backend close error", zap.Error(err))
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logger.Warn("backend close timed out", zap.Duration("grace", shutdownGrace))
	}
}

// openBackends connects to Firebase when a project is configured and falls
// back to local YAML fixtures otherwise.
func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	if !cfg.Firebase.UsesFirebase() {
		return localBackends(cfg, logger)
	}

	var clientOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	storeOpts := append([]option.ClientOption(nil), clientOpts...)
	if host := cfg.Firebase.FirestoreEmulatorHost; host != "" {
		storeOpts = append(storeOpts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		logger.Info("using firestore emulator", zap.String("host", host))
	}
	client, err := firestore.NewClient(ctx, cfg.Firebase.ProjectID, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}

	store, err := session.NewFirestoreStore(client, session.FirestoreConfig{
		ProfilesCollection:  cfg.Firebase.ProfilesCollection,
		AllowListCollection: cfg.Firebase.AllowListCollection,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	b := &backends{
		verifier: session.NewFirebaseVerifier(authClient),
		profiles: store,
		admins:   store,
		members:  store,
		closers:  []func() error{client.Close},
	}
	if cfg.Settings.File != "" {
		b.settings = settings.FileProvider{Path: cfg.Settings.File}
	} else {
		provider, err := settings.NewFirestoreProvider(client, cfg.Settings.Document)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		b.settings = provider
	}
	logger.Info("firebase backends enabled", zap.String("project", cfg.Firebase.ProjectID))
	return b, nil
}

func localBackends(cfg config.Config, logger *zap.Logger) (*backends, error) {
	dir := session.NewStaticDirectory(session.Fixtures{})
	if cfg.FixturesPath != "" {
		loaded, err := session.LoadFixtures(cfg.FixturesPath)
		if err != nil {
			return nil, err
		}
		dir = loaded
	}
	var provider settings.Provider = settings.Static{}
	if cfg.Settings.File != "" {
		provider = settings.FileProvider{Path: cfg.Settings.File}
	}
	logger.Warn("no firebase project configured; using local fixtures",
		zap.String("fixtures", cfg.FixturesPath),
		zap.String("sign_in_token_prefix", session.DebugTokenPrefix),
	)
	return &backends{
		verifier: dir,
		profiles: dir,
		admins:   dir,
		members:  dir,
		settings: provider,
	}, nil
}
