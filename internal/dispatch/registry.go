// Package dispatch resolves a base64 JSON envelope to one of the registered
// conversion operations and packages the outcome as a gateway response.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"docconv/internal/domain"
)

const maxDPI = 1200

// Operations is the conversion surface the registry exposes.
type Operations interface {
	RenderHTMLToPDF(ctx context.Context, html string, stylesheets []string) (string, error)
	RasterizePDFToImages(ctx context.Context, pdfBase64 string, dpi float64) ([]string, error)
}

// Handler decodes its own arguments and runs one operation.
type Handler interface {
	Invoke(ctx context.Context, kwargs json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, kwargs json.RawMessage) (any, error)

func (f HandlerFunc) Invoke(ctx context.Context, kwargs json.RawMessage) (any, error) {
	return f(ctx, kwargs)
}

// Registry is the closed set of callable operations. It is built once and
// never modified.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry binds the operation names to ops.
func NewRegistry(ops Operations) *Registry {
	return &Registry{handlers: map[string]Handler{
		domain.OpRenderHTMLToPDF:      renderHandler(ops),
		domain.OpRasterizePDFToImages: rasterizeHandler(ops),
	}}
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names lists the registered operations in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type renderArgs struct {
	String      *string   `json:"string"`
	Stylesheets *[]string `json:"stylesheets"`
}

type rasterizeArgs struct {
	PDF *string  `json:"pdf"`
	DPI *float64 `json:"dpi"`
}

func renderHandler(ops Operations) Handler {
	return HandlerFunc(func(ctx context.Context, kwargs json.RawMessage) (any, error) {
		const op = domain.OpRenderHTMLToPDF
		var args renderArgs
		if err := decodeArgs(op, kwargs, &args); err != nil {
			return nil, err
		}
		if err := required(op, present{"string", args.String != nil}, present{"stylesheets", args.Stylesheets != nil}); err != nil {
			return nil, err
		}
		return ops.RenderHTMLToPDF(ctx, *args.String, *args.Stylesheets)
	})
}

func rasterizeHandler(ops Operations) Handler {
	return HandlerFunc(func(ctx context.Context, kwargs json.RawMessage) (any, error) {
		const op = domain.OpRasterizePDFToImages
		var args rasterizeArgs
		if err := decodeArgs(op, kwargs, &args); err != nil {
			return nil, err
		}
		if err := required(op, present{"pdf", args.PDF != nil}); err != nil {
			return nil, err
		}
		var dpi float64
		if args.DPI != nil {
			dpi = *args.DPI
			if dpi < 1 || dpi > maxDPI {
				return nil, domain.Errorf(domain.KindArgument, op, "dpi must be in [1, %d], got %g", maxDPI, dpi)
			}
		}
		return ops.RasterizePDFToImages(ctx, *args.PDF, dpi)
	})
}

// decodeArgs decodes kwargs into dst, rejecting unknown keys and mistyped
// values. Absent kwargs decode as an empty object.
func decodeArgs(op string, kwargs json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(kwargs)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domain.Errorf(domain.KindArgument, op, "argument %q: expected %s, got JSON %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return domain.Errorf(domain.KindArgument, op, "invalid arguments: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Errorf(domain.KindArgument, op, "invalid arguments: unexpected data after object")
	}
	return nil
}

type present struct {
	name string
	ok   bool
}

// required reports every argument that was not supplied.
func required(op string, args ...present) error {
	var missing []string
	for _, a := range args {
		if !a.ok {
			missing = append(missing, fmt.Sprintf("%q", a.name))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return domain.Errorf(domain.KindArgument, op, "%w: %s", domain.ErrMissingArgument, strings.Join(missing, ", "))
}
