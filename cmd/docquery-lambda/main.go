// Command docquery-lambda serves document queries behind API Gateway.
//
// The request body is a JSON or YAML query spec. Configuration is read from
// DOCQUERY_* environment variables and the optional YAML file named by
// DOCQUERY_CONFIG. Setting DOCQUERY_JWT_SECRET requires bearer tokens issued
// by the auth service, and DOCQUERY_RATE_LIMIT_RPS throttles requests.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/viper"

	"github.com/theory-cloud/docquery"
	"github.com/theory-cloud/docquery/pkg/auth"
	"github.com/theory-cloud/docquery/pkg/protection"
	"github.com/theory-cloud/docquery/pkg/session"
)

func newHandlerFromEnv(ctx context.Context) (*Handler, error) {
	cfg, err := session.LoadConfig(viper.New(), os.Getenv("DOCQUERY_CONFIG"))
	if err != nil {
		return nil, err
	}

	db, err := docquery.LambdaInit(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}

	var authService *auth.Service
	if secret := os.Getenv("DOCQUERY_JWT_SECRET"); secret != "" {
		authService, err = db.Auth(auth.Options{
			Secret: []byte(secret),
			Issuer: os.Getenv("DOCQUERY_JWT_ISSUER"),
		})
		if err != nil {
			return nil, err
		}
	}
	return NewHandler(db, authService, limiterFromEnv()), nil
}

// limiterFromEnv reads DOCQUERY_RATE_LIMIT_RPS and DOCQUERY_RATE_LIMIT_BURST.
// Unset or invalid values disable limiting.
func limiterFromEnv() *protection.Limiter {
	rps, err := strconv.ParseFloat(os.Getenv("DOCQUERY_RATE_LIMIT_RPS"), 64)
	if err != nil {
		return nil
	}
	burst, err := strconv.Atoi(os.Getenv("DOCQUERY_RATE_LIMIT_BURST"))
	if err != nil {
		burst = max(1, int(rps))
	}
	return protection.NewLimiter(rps, burst)
}

func main() {
	handler, err := newHandlerFromEnv(context.Background())
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize handler: %v", err))
	}

	lambda.Start(handler.HandleRequest)
}
