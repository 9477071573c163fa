// Package main implements push-send, an operator CLI that runs one request
// through the dispatch pipeline without going through the HTTP API.
//
// It is intended for local development and operational debugging.
//
// Usage:
//
//	go run ./cmd/tools/push-send --mode=single --user=u1 --title=Hi --body=Hello
//	go run ./cmd/tools/push-send --mode=list --users=u1,u2 --title=Hi --body=Hello
//	go run ./cmd/tools/push-send --mode=campus --campus=north --title=Hi --body=Hello --data='{"event_id":"42"}'
//	go run ./cmd/tools/push-send --dry-run --mode=campus --campus=north --title=x --body=y
//
// Configuration is read the same way as the API (environment plus optional
// .env file). With --dry-run the audience is resolved and the endpoints are
// printed, but nothing is sent or logged.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"campuspush/internal/config"
	"campuspush/internal/db"
	"campuspush/internal/dispatch"
	"campuspush/internal/gateway"
	"campuspush/internal/types"
)

type options struct {
	request dispatch.Request
	dryRun  bool
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs builds the dispatch request from command-line flags.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("push-send", flag.ContinueOnError)
	fs.SetOutput(stderr)

	mode := fs.String("mode", "", "audience mode: single, list or campus")
	user := fs.String("user", "", "recipient user id (single)")
	users := fs.String("users", "", "comma-separated recipient user ids (list)")
	campus := fs.String("campus", "", "campus name (campus)")
	title := fs.String("title", "", "notification title")
	body := fs.String("body", "", "notification body")
	data := fs.String("data", "", "optional JSON object delivered as the data payload")
	dryRun := fs.Bool("dry-run", false, "resolve endpoints without sending")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	var aud types.Audience
	switch types.AudienceMode(*mode) {
	case types.AudienceSingle:
		aud = types.SingleUser(types.RecipientID(*user))
	case types.AudienceList:
		var ids []types.RecipientID
		for _, id := range strings.Split(*users, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, types.RecipientID(id))
			}
		}
		aud = types.UserList(ids)
	case types.AudienceCampus:
		aud = types.CampusAudience(*campus)
	default:
		return options{}, fmt.Errorf("--mode must be one of single, list, campus (got %q)", *mode)
	}

	var payload map[string]any
	if *data != "" {
		if err := json.Unmarshal([]byte(*data), &payload); err != nil {
			return options{}, fmt.Errorf("--data is not a JSON object: %w", err)
		}
	}

	return options{
		request: dispatch.Request{Audience: aud, Title: *title, Body: *body, Data: payload},
		dryRun:  *dryRun,
	}, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx = types.WithRequestID(ctx, "push-send-"+uuid.NewString())

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	resolver := dispatch.NewResolver(db.NewDirectoryRepository(pool))
	lookup := dispatch.NewLookup(db.NewTokenRepository(pool))

	if opts.dryRun {
		return printEndpoints(ctx, resolver, lookup, opts.request.Audience, out)
	}

	fcm := gateway.NewFCM(
		gateway.NewBaseClient(&http.Client{Timeout: cfg.Gateway.Timeout}, gateway.BreakerSettings{}, cfg.Gateway.UserAgent),
		cfg.Gateway.Endpoint,
		cfg.Gateway.ServerKey,
	)
	logs := dispatch.NewLogWriter(db.NewNotificationLogRepository(pool), cfg.Dispatch.LogWriteTimeout, logger, nil)
	svc := dispatch.NewService(resolver, lookup, dispatch.NewEngine(fcm, cfg.Dispatch.MaxConcurrency, logger, nil), logs, logger)

	res, dispatchErr := svc.Dispatch(ctx, opts.request)

	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if !logs.WaitContext(waitCtx) {
		logger.Warn("gave up waiting for the notification log write")
	}

	if dispatchErr != nil {
		return dispatchErr
	}
	return writeJSON(out, map[string]any{
		"audience":   res.Audience.String(),
		"recipients": res.Recipients,
		"endpoints":  res.Endpoints,
		"results":    res.Outcomes,
		"summary":    res.Summary,
	})
}

type endpointView struct {
	UserID   types.RecipientID `json:"user_id"`
	Platform string            `json:"platform,omitempty"`
	Token    string            `json:"token"`
}

func printEndpoints(ctx context.Context, resolver *dispatch.Resolver, lookup *dispatch.Lookup, aud types.Audience, out io.Writer) error {
	recipients, err := resolver.Resolve(ctx, aud)
	if err != nil {
		return err
	}
	endpoints, err := lookup.Endpoints(ctx, aud.Mode, recipients)
	if err != nil {
		return err
	}

	views := make([]endpointView, len(endpoints))
	for i, ep := range endpoints {
		views[i] = endpointView{UserID: ep.Recipient, Platform: ep.Platform, Token: maskToken(ep.Token)}
	}
	return writeJSON(out, map[string]any{
		"audience":   aud.String(),
		"recipients": len(recipients),
		"endpoints":  views,
	})
}

// maskToken keeps the first and last four characters of a device token.
func maskToken(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
