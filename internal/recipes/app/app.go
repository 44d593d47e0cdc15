package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/api/server"
	cr "github.com/Leopold1975/recipe_catalog/internal/recipes/repository/catalogrepo/postgres"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/repository/imagestore/disk"
	tr "github.com/Leopold1975/recipe_catalog/internal/recipes/repository/tokenrepo/redis"
	ur "github.com/Leopold1975/recipe_catalog/internal/recipes/repository/userrepo/postgres"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/services/authservice"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/services/catalogservice"
	"github.com/Leopold1975/recipe_catalog/pkg/logger"
)

type Server interface {
	Start(context.Context) error
	Shutdown(context.Context) error
}

type RecipesApp struct {
	s   Server
	lg  logger.Logger
	cfg config.Config
}

func New(ctx context.Context, cfg config.Config) (RecipesApp, error) {
	lg, err := logger.New(cfg.Logger)
	if err != nil {
		return RecipesApp{}, fmt.Errorf("can't get logger error: %w", err)
	}

	catalogRepo, err := cr.New(ctx, cfg.PostgresDB)
	if err != nil {
		return RecipesApp{}, fmt.Errorf("postgres catalog repo initializing error: %w", err)
	}

	images, err := disk.New(cfg.Storage)
	if err != nil {
		return RecipesApp{}, fmt.Errorf("image store initializing error: %w", err)
	}

	catalogService := catalogservice.New(catalogRepo, images, lg)

	userRepo, err := ur.New(ctx, cfg.PostgresDB)
	if err != nil {
		return RecipesApp{}, fmt.Errorf("postgres user repo initializing error: %w", err)
	}

	tokens, err := tr.New(ctx, cfg.RedisDB, cfg.Auth.TTL)
	if err != nil {
		return RecipesApp{}, fmt.Errorf("redis token store initializing error: %w", err)
	}

	authService := authservice.New(userRepo, tokens, cfg.Auth)

	s := server.New(cfg.Server, catalogService, authService, lg)

	return RecipesApp{
		s:   s,
		lg:  lg,
		cfg: cfg,
	}, nil
}

func (ra *RecipesApp) Run(ctx context.Context) {
	ra.lg.Infof("STARTED SERVER ON %s", ra.cfg.Server.Addr)

	go func() {
		if err := ra.s.Start(ctx); err != nil {
			ra.lg.Errorf("server start error: %s", err.Error())

			return
		}
	}()

	<-ctx.Done()

	ctxS, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	if err := ra.Stop(ctxS); err != nil { //nolint:contextcheck
		ra.lg.Errorf("server shutdown error: %s", err.Error())
	}
}

func (ra *RecipesApp) Stop(ctx context.Context) error {
	if err := ra.s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	ra.lg.Info("Shutdowned successfully")

	return nil
}
