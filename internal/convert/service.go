// Package convert implements the two conversion operations: HTML to PDF and
// PDF to PNG page images. Inputs and outputs are base64 text.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/disintegration/imaging"

	"docconv/internal/codec"
	"docconv/internal/config"
	"docconv/internal/domain"
	"docconv/internal/infra/cache"
	"docconv/internal/raster"
)

var pdfMagic = []byte("%PDF")

// RenderOptions are built per request and passed to the renderer explicitly.
type RenderOptions struct {
	Paper           config.PaperSize
	Margin          float64
	PrintBackground bool
	Timeout         time.Duration
}

// RenderRequest is one HTML document with its ordered stylesheets.
type RenderRequest struct {
	HTML        string
	Stylesheets []string
	Options     RenderOptions
}

// HTMLRenderer turns HTML plus stylesheets into PDF bytes.
type HTMLRenderer interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// Service bundles the engines behind the conversion operations.
type Service struct {
	cfg      config.Config
	renderer HTMLRenderer
	engine   raster.Engine
	cache    *cache.PDFCache
}

// NewService wires the operations. pdfCache may be nil.
func NewService(cfg config.Config, renderer HTMLRenderer, engine raster.Engine, pdfCache *cache.PDFCache) *Service {
	return &Service{cfg: cfg, renderer: renderer, engine: engine, cache: pdfCache}
}

func (s *Service) renderOptions() RenderOptions {
	return RenderOptions{
		Paper:           s.cfg.Paper(),
		Margin:          s.cfg.PDF.Margin,
		PrintBackground: s.cfg.PDF.PrintBackground,
		Timeout:         s.cfg.Timeout(),
	}
}

// RenderHTMLToPDF renders html with the stylesheets applied in order and
// returns the PDF as base64.
func (s *Service) RenderHTMLToPDF(ctx context.Context, html string, stylesheets []string) (string, error) {
	const op = domain.OpRenderHTMLToPDF
	opts := s.renderOptions()

	key := cache.Key(html, stylesheets, opts.Paper.Width, opts.Paper.Height, opts.Margin, opts.PrintBackground)
	if cached := s.cache.Get(ctx, key); cached != nil {
		return codec.BytesToBase64(cached), nil
	}

	pdf, err := s.renderer.Render(ctx, RenderRequest{HTML: html, Stylesheets: stylesheets, Options: opts})
	if err != nil {
		return "", domain.E(domain.KindRender, op, err)
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return "", domain.E(domain.KindRender, op, domain.ErrNotPDF)
	}
	if len(pdf) > s.cfg.Limits.MaxPDFBytes {
		return "", domain.Errorf(domain.KindRender, op, "%w: %d > %d bytes", domain.ErrPDFTooLarge, len(pdf), s.cfg.Limits.MaxPDFBytes)
	}

	s.cache.Set(ctx, key, pdf)
	return codec.BytesToBase64(pdf), nil
}

// RasterizePDFToImages renders every page of the base64 PDF to PNG, in page
// order. A dpi of zero uses the configured default; fractional values are
// rounded to whole dots per inch so every engine renders the same size. Any
// failing page fails the whole call.
func (s *Service) RasterizePDFToImages(ctx context.Context, pdfBase64 string, dpi float64) ([]string, error) {
	const op = domain.OpRasterizePDFToImages

	raw, err := codec.Base64ToBytes(pdfBase64)
	if err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = s.cfg.Raster.DPI
	}
	dpi = math.Max(1, math.Round(dpi))

	doc, err := s.engine.Open(raw)
	if err != nil {
		return nil, domain.E(domain.KindRender, op, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n <= 0 {
		return nil, domain.E(domain.KindRender, op, domain.ErrNoPages)
	}

	images := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.E(domain.KindRender, op, err)
		}
		encoded, err := s.encodePage(doc, i, dpi)
		if err != nil {
			return nil, domain.E(domain.KindRender, op, err)
		}
		images = append(images, encoded)
	}
	return images, nil
}

// encodePage renders one page to base64 PNG and releases the page image
// before returning, whatever the outcome.
func (s *Service) encodePage(doc raster.Document, index int, dpi float64) (string, error) {
	img, release, err := doc.RenderPage(index, dpi)
	if release != nil {
		defer release()
	}
	if err != nil {
		return "", err
	}

	if max := s.cfg.Raster.MaxWidth; max > 0 && img.Bounds().Dx() > max {
		img = imaging.Resize(img, max, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode page %d as PNG: %w", index, err)
	}
	return codec.BytesToBase64(buf.Bytes()), nil
}
