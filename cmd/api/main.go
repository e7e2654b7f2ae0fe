package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"thea/api/internal/app"
	"thea/api/internal/config"
	"thea/api/internal/email"
	"thea/api/internal/files"
	"thea/api/internal/presence"
	"thea/api/internal/store"
	"thea/api/internal/workflow"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var documents store.Store
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("postgres connection failed: %v", err)
		}
		defer pg.Close()
		documents = pg
	case "memory":
		documents = store.NewMemory()
	default:
		dynamo, err := store.NewDynamo(ctx, store.DynamoConfig{
			Region:   cfg.AWSRegion,
			Endpoint: cfg.DynamoEndpoint,
		})
		if err != nil {
			log.Fatalf("dynamodb client failed: %v", err)
		}
		documents = dynamo
	}

	workflows := workflow.NewWriter(documents, cfg.WorkflowsTablePrefix)

	mailer := email.NewService(email.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		FromName:    cfg.SMTPFromName,
		SignupLink:  cfg.SignupLink,
		OnboardLink: cfg.OnboardLink,
	})
	if !mailer.IsConfigured() {
		log.Printf("SMTP not configured, email notifications disabled")
	}

	opts := app.Options{
		ProjectsTablePrefix: cfg.ProjectsTablePrefix,
		ChatTablePrefix:     cfg.ChatRecordsTablePrefix,
		UsersTable:          cfg.UsersTable,
		Email:               mailer,
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		dataroom, err := files.NewService(files.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			URLExpiry: cfg.URLExpiry,
		})
		if err != nil {
			log.Fatalf("object storage client failed: %v", err)
		}
		opts.Files = dataroom
	} else {
		log.Printf("object storage not configured, dataroom endpoints disabled")
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		registry, err := presence.NewRegistry(cfg.RedisURL, cfg.PresenceTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer registry.Close()
		opts.Presence = registry
	} else {
		log.Printf("redis not configured, presence endpoints disabled")
	}

	service := app.NewService(documents, workflows, opts)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Thea API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
