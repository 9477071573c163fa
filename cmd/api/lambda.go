package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

// runLambda serves API Gateway proxy events until the runtime stops the
// process. lambda.Start never returns.
func runLambda(a *app, logger *slog.Logger) {
	logger.Info("starting in Lambda mode")
	lambda.Start(newProxyHandler(a.server.Handler(), func(ctx context.Context) {
		// The execution environment freezes once the handler returns, so
		// pending log writes are finished within the invocation.
		if !a.logs.WaitContext(ctx) {
			logger.Warn("invocation deadline reached with notification log writes in flight")
		}
	}))
}

type proxyHandlerFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// newProxyHandler adapts an http.Handler to API Gateway REST proxy events.
// after, when non-nil, runs once the response has been produced.
func newProxyHandler(h http.Handler, after func(ctx context.Context)) proxyHandlerFunc {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		req, err := toHTTPRequest(ctx, event)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}

		w := newProxyResponseWriter()
		h.ServeHTTP(w, req)

		if after != nil {
			after(ctx)
		}
		return w.response(), nil
	}
}

func toHTTPRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 body: %w", err)
		}
		body = decoded
	}

	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}

	target := (&url.URL{Path: event.Path, RawQuery: query.Encode()}).String()
	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if event.RequestContext.RequestID != "" && req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", event.RequestContext.RequestID)
	}

	req.RemoteAddr = event.RequestContext.Identity.SourceIP
	req.Host = req.Header.Get("Host")
	req.ContentLength = int64(len(body))
	return req, nil
}

// proxyResponseWriter buffers a response for conversion into a proxy event.
type proxyResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newProxyResponseWriter() *proxyResponseWriter {
	return &proxyResponseWriter{header: make(http.Header)}
}

func (w *proxyResponseWriter) Header() http.Header { return w.header }

func (w *proxyResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *proxyResponseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *proxyResponseWriter) response() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	single := make(map[string]string, len(w.header))
	for k, vs := range w.header {
		single[k] = strings.Join(vs, ",")
	}

	return events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           single,
		MultiValueHeaders: map[string][]string(w.header),
		Body:              w.body.String(),
	}
}
