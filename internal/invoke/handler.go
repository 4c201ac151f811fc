// Package invoke adapts the dispatcher to AWS Lambda proxy events.
package invoke

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/xid"

	"docconv/internal/codec"
	"docconv/internal/dispatch"
	"docconv/internal/domain"
)

// Handler serves API Gateway proxy events.
type Handler struct {
	dispatcher *dispatch.Dispatcher
}

func NewHandler(d *dispatch.Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// Handle is the function passed to lambda.Start. It never returns an error:
// every failure is a 406 response.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx = dispatch.WithRequestID(ctx, requestID(ctx, req))

	body := req.Body
	if req.IsBase64Encoded {
		raw, err := codec.Base64ToBytes(body)
		if err != nil {
			return toProxyResponse(h.dispatcher.Fail(ctx, domain.E(domain.KindDecode, "event", err))), nil
		}
		body = string(raw)
	}

	return toProxyResponse(h.dispatcher.Dispatch(ctx, body)), nil
}

func toProxyResponse(r dispatch.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode:      r.StatusCode,
		Headers:         r.Headers,
		Body:            r.Body,
		IsBase64Encoded: r.IsBase64Encoded,
	}
}

func requestID(ctx context.Context, req events.APIGatewayProxyRequest) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	if req.RequestContext.RequestID != "" {
		return req.RequestContext.RequestID
	}
	return xid.New().String()
}
