package core

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	proxycore "github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// LambdaHandlerFunc is the signature lambda.Start expects for API Gateway
// HTTP API (payload format 2.0) integrations.
type LambdaHandlerFunc func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// LambdaHandler bridges API Gateway HTTP API events to h through the
// aws-lambda-go-api-proxy V2 adapter.
func LambdaHandler(h http.Handler) LambdaHandlerFunc {
	return httpadapter.NewV2(gatewayRequestID(h)).ProxyWithContext
}

// gatewayRequestID reuses the API Gateway request ID as X-Request-Id when the
// caller sent none, so logs correlate with the gateway's access logs.
func gatewayRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			if gw, ok := proxycore.GetAPIGatewayV2ContextFromContext(r.Context()); ok && gw.RequestID != "" {
				r.Header.Set("X-Request-Id", gw.RequestID)
			}
		}
		next.ServeHTTP(w, r)
	})
}
