// Package lambdaapi exposes the submission and query flows as API Gateway
// HTTP API (payload v2) Lambda handlers.
package lambdaapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/example/faces-api/internal/handlers"
	"github.com/example/faces-api/internal/usecase"
	"github.com/example/faces-api/internal/validation"
)

// Handler adapts API Gateway events to the use cases.
type Handler struct {
	submitter handlers.Submitter
	finder    handlers.Finder
	logger    *zap.Logger
}

// NewHandler builds a handler; either use case may be nil if the function only
// serves the other route.
func NewHandler(submitter handlers.Submitter, finder handlers.Finder, logger *zap.Logger) *Handler {
	return &Handler{submitter: submitter, finder: finder, logger: logger.Named("lambda")}
}

// Submit handles photo uploads.
func (h *Handler) Submit(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	// Decoded lazily: admission and the method check run before a bad encoding surfaces.
	var body io.Reader = strings.NewReader(req.Body)
	if req.IsBase64Encoded {
		body = base64.NewDecoder(base64.StdEncoding, body)
	}

	result, err := h.submitter.Submit(ctx, usecase.Submission{
		Method:        req.RequestContext.HTTP.Method,
		ContentType:   header(req.Headers, "Content-Type"),
		SourceAddress: req.RequestContext.HTTP.SourceIP,
		Body:          body,
	})
	if err != nil {
		status, payload := handlers.SubmitErrorResponse(err)
		return jsonResponse(status, payload), nil
	}
	return jsonResponse(http.StatusOK, map[string]string{"url": result.URL}), nil
}

// Query handles bounding-box lookups.
func (h *Handler) Query(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	box, err := validation.ParseBoundingBox(req.QueryStringParameters)
	if err != nil {
		status, payload := handlers.QueryErrorResponse(err)
		return jsonResponse(status, payload), nil
	}

	records, err := h.finder.FindInBox(ctx, box)
	if err != nil {
		h.logger.Error("bounding box query failed", zap.Error(err))
		status, payload := handlers.QueryErrorResponse(err)
		return jsonResponse(status, payload), nil
	}
	return jsonResponse(http.StatusOK, records), nil
}

// header looks a header up regardless of the casing the gateway delivered.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	if v, ok := headers[strings.ToLower(name)]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, payload any) events.APIGatewayV2HTTPResponse {
	data, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"message":"Server Error"}`)
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}
