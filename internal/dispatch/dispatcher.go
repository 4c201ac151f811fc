package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"docconv/internal/codec"
	"docconv/internal/domain"
	"docconv/internal/infra/logging"
)

// Response is the gateway-style outcome of one dispatch.
type Response struct {
	StatusCode      int               `json:"statusCode"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
	Headers         map[string]string `json:"headers"`
}

type envelope struct {
	Function string          `json:"function"`
	Kwargs   json.RawMessage `json:"kwargs"`
}

type successBody struct {
	Result   any    `json:"result"`
	Function string `json:"function"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var statusByKind = map[domain.Kind]int{
	domain.KindInternal:         http.StatusNotAcceptable,
	domain.KindDecode:           http.StatusNotAcceptable,
	domain.KindSerialization:    http.StatusNotAcceptable,
	domain.KindParse:            http.StatusNotAcceptable,
	domain.KindUnknownOperation: http.StatusNotAcceptable,
	domain.KindArgument:         http.StatusNotAcceptable,
	domain.KindRender:           http.StatusNotAcceptable,
}

// StatusFor maps an error kind to the response status.
func StatusFor(kind domain.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusNotAcceptable
}

// Dispatcher runs envelopes against a Registry.
type Dispatcher struct {
	registry         *Registry
	maxEnvelopeBytes int
}

// New returns a dispatcher. A maxEnvelopeBytes of zero disables the size check.
func New(registry *Registry, maxEnvelopeBytes int) *Dispatcher {
	return &Dispatcher{registry: registry, maxEnvelopeBytes: maxEnvelopeBytes}
}

// Registry returns the operations this dispatcher can run.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch decodes envelopeText, runs the named operation and returns the
// response. It never returns an error; failures become 406 responses.
func (d *Dispatcher) Dispatch(ctx context.Context, envelopeText string) Response {
	start := time.Now()
	function, result, err := d.run(ctx, envelopeText)

	var resp Response
	if err != nil {
		resp = d.Fail(ctx, err)
	} else {
		resp = d.succeed(ctx, function, result)
	}

	logging.Info("Dispatched request",
		"request_id", RequestID(ctx),
		"function", function,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp
}

func (d *Dispatcher) run(ctx context.Context, envelopeText string) (string, any, error) {
	if d.maxEnvelopeBytes > 0 && len(envelopeText) > d.maxEnvelopeBytes {
		return "", nil, domain.Errorf(domain.KindDecode, "envelope", "%w: %d > %d bytes", domain.ErrEnvelopeTooLarge, len(envelopeText), d.maxEnvelopeBytes)
	}

	var raw json.RawMessage
	if err := codec.Base64ToValue(envelopeText, &raw); err != nil {
		return "", nil, err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return "", nil, domain.Errorf(domain.KindParse, "envelope", "payload is not a JSON object")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, domain.E(domain.KindParse, "envelope", err)
	}

	handler, ok := d.registry.Lookup(env.Function)
	if !ok {
		return env.Function, nil, domain.Errorf(domain.KindUnknownOperation, "dispatch", "%w: %q", domain.ErrUnknownOperation, env.Function)
	}

	result, err := handler.Invoke(ctx, env.Kwargs)
	return env.Function, result, err
}

func (d *Dispatcher) succeed(ctx context.Context, function string, result any) Response {
	body, err := json.Marshal(successBody{Result: result, Function: function})
	if err != nil {
		return d.Fail(ctx, domain.E(domain.KindSerialization, function, err))
	}
	return newResponse(http.StatusOK, body)
}

// Fail converts err into a failure response. Errors without a kind are
// reported as internal.
func (d *Dispatcher) Fail(ctx context.Context, err error) Response {
	kind := domain.KindOf(err)
	status := StatusFor(kind)

	level := logging.Warn
	if kind == domain.KindInternal || errors.Is(err, context.DeadlineExceeded) {
		level = logging.Error
	}
	level("Dispatch failed", "request_id", RequestID(ctx), "kind", kind.String(), "error", err)

	body, _ := json.Marshal(errorBody{Error: errorDetail{
		Code:    status,
		Kind:    kind.String(),
		Message: err.Error(),
	}})
	return newResponse(status, body)
}

func newResponse(status int, body []byte) Response {
	return Response{
		StatusCode:      status,
		Body:            string(body),
		IsBase64Encoded: false,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx with the id used in dispatch logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
