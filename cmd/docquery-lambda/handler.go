package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/theory-cloud/docquery"
	"github.com/theory-cloud/docquery/pkg/auth"
	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/protection"
	"github.com/theory-cloud/docquery/pkg/request"
)

// QueryResponse is the body of a successful query
type QueryResponse struct {
	Documents []map[string]any `json:"documents"`
	Count     int              `json:"count"`
}

// Handler runs QuerySpec request bodies against the DB
type Handler struct {
	db      *docquery.DB
	auth    *auth.Service
	limiter *protection.Limiter
	logger  *slog.Logger
}

// NewHandler creates a handler. With a non-nil auth service every request
// needs a valid bearer token; a nil limiter admits every request.
func NewHandler(db *docquery.DB, authService *auth.Service, limiter *protection.Limiter) *Handler {
	return &Handler{db: db, auth: authService, limiter: limiter, logger: db.Logger()}
}

// HandleRequest processes one API Gateway proxy request
func (h *Handler) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return errorResponse(http.StatusMethodNotAllowed, "use POST with a query spec body"), nil
	}

	if !h.limiter.Allow() {
		return errorResponse(http.StatusTooManyRequests, "rate limit exceeded"), nil
	}

	if h.auth != nil {
		claims, err := h.auth.Verify(ctx, bearerToken(req.Headers))
		if err != nil {
			return errorResponse(http.StatusUnauthorized, "invalid authentication"), nil
		}
		h.logger.DebugContext(ctx, "authenticated request", slog.String("user", claims.Subject), slog.String("role", claims.Role))
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "body is not valid base64"), nil
		}
		body = decoded
	}

	spec, err := request.Parse(body)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	ctx, cancel := docquery.WithLambdaTimeout(ctx)
	defer cancel()

	docs, err := h.db.Run(ctx, spec)
	if err != nil {
		return h.queryFailed(ctx, spec, err), nil
	}

	out := QueryResponse{Documents: make([]map[string]any, len(docs)), Count: len(docs)}
	for i, doc := range docs {
		out.Documents[i] = core.EncodeDocument(doc)
	}
	return successResponse(http.StatusOK, out), nil
}

func (h *Handler) queryFailed(ctx context.Context, spec *request.QuerySpec, err error) events.APIGatewayProxyResponse {
	switch {
	case errors.IsPrecondition(err):
		return errorResponse(http.StatusBadRequest, err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return errorResponse(http.StatusGatewayTimeout, "query timed out")
	default:
		h.logger.ErrorContext(ctx, "query failed", slog.String("collection", spec.Collection), slog.Any("error", err))
		return errorResponse(http.StatusInternalServerError, "query failed")
	}
}

func bearerToken(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "Authorization") {
			token, ok := strings.CutPrefix(v, "Bearer ")
			if ok {
				return strings.TrimSpace(token)
			}
		}
	}
	return ""
}

func successResponse(statusCode int, data any) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]any{
		"success": true,
		"data":    data,
	})

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}
}

func errorResponse(statusCode int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   message,
	})

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}
}
