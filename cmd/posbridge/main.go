// Package main provides the Lambda handler and local CLI entry point for posbridge.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"github.com/dgreenaway/posbridge/internal/config"
	"github.com/dgreenaway/posbridge/internal/lightspeed"
	"github.com/dgreenaway/posbridge/internal/storage"
	possync "github.com/dgreenaway/posbridge/internal/sync"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Local invocations may carry settings in a .env file.
	_ = godotenv.Load()

	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1]); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler)
}

// runCommand dispatches a local CLI subcommand.
func runCommand(name string) error {
	switch name {
	case "auth":
		return runAuth()
	case "init":
		return runInit()
	default:
		return fmt.Errorf("unknown command %q (expected auth or init)", name)
	}
}

// syncEvent is the Lambda invocation payload.
type syncEvent struct {
	// DryRun skips all writes to storage.
	DryRun bool `json:"dry_run"`

	// UserID identifies the user whose sales should be synced.
	UserID string `json:"user_id"`
}

// syncOutput is the Lambda invocation result.
type syncOutput struct {
	// RunID uniquely identifies the run for log correlation.
	RunID string `json:"run_id"`

	// Synced is the number of sold-item rows persisted.
	Synced int `json:"synced"`

	// Total equals Synced.
	Total int `json:"total"`
}

func handler(ctx context.Context, event syncEvent) (syncOutput, error) {
	if event.UserID == "" {
		return syncOutput{}, errors.New("user_id is required")
	}

	svc, err := buildService(ctx, event.DryRun)
	if err != nil {
		return syncOutput{}, err
	}

	result, err := svc.SyncSales(ctx, event.UserID, func(msg string) {
		slog.InfoContext(ctx, "sync progress", "message", msg)
	})
	if err != nil {
		return syncOutput{}, err
	}

	return syncOutput{
		RunID:  result.RunID,
		Synced: result.Synced,
		Total:  result.Total,
	}, nil
}

// buildService wires the AWS-backed sync service from environment settings.
func buildService(ctx context.Context, dryRun bool) (*possync.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	params, err := storage.NewParameterStore(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("creating parameter store: %w", err)
	}

	clientID, err := params.Parameter(ctx, cfg.Lightspeed.ClientIDParameter)
	if err != nil {
		return nil, fmt.Errorf("reading client ID parameter: %w", err)
	}
	if clientID == "" {
		return nil, fmt.Errorf("SSM parameter %s is empty", cfg.Lightspeed.ClientIDParameter)
	}

	creds, err := storage.NewCredentialStore(
		secretsmanager.NewFromConfig(awsCfg),
		cfg.Lightspeed.ClientSecretARN,
	)
	if err != nil {
		return nil, fmt.Errorf("creating credential store: %w", err)
	}

	clientSecret, err := creds.ClientSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading client secret: %w", err)
	}

	lsClient, err := lightspeed.NewClient(
		lightspeed.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
		},
		lightspeed.WithBaseURL(cfg.Lightspeed.APIBaseURL),
		lightspeed.WithTokenURL(cfg.Lightspeed.TokenURL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating lightspeed client: %w", err)
	}

	ddb := dynamodb.NewFromConfig(awsCfg)

	connections, err := storage.NewConnectionStore(ddb, cfg.DynamoDB.ConnectionsTable)
	if err != nil {
		return nil, fmt.Errorf("creating connection store: %w", err)
	}

	items, err := storage.NewSoldItemStore(ddb, cfg.DynamoDB.ItemsTable)
	if err != nil {
		return nil, fmt.Errorf("creating sold item store: %w", err)
	}

	return possync.New(possync.Config{
		Client:      lsClient,
		Connections: connections,
		DryRun:      dryRun,
		Items:       items,
		Logger:      slog.Default(),
	})
}
