// Package raster turns PDF pages into images.
package raster

import (
	"fmt"
	"image"

	"docconv/internal/config"
)

// Engine opens PDF documents for rendering.
type Engine interface {
	Open(pdf []byte) (Document, error)
	Close() error
}

// Document is an open PDF. RenderPage returns the page image and a release
// func that must be called once the image is no longer used.
type Document interface {
	NumPage() int
	RenderPage(index int, dpi float64) (image.Image, func(), error)
	Close() error
}

// New builds the engine named by raster.engine.
func New(cfg config.Config) (Engine, error) {
	switch cfg.Raster.Engine {
	case config.EnginePDFium, "":
		return NewPDFium(cfg.Raster.Workers)
	case config.EngineFitz:
		return NewFitz(), nil
	default:
		return nil, fmt.Errorf("unknown raster engine %q", cfg.Raster.Engine)
	}
}
