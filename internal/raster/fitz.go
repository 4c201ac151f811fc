package raster

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// Fitz renders with MuPDF through go-fitz.
type Fitz struct{}

// NewFitz returns a MuPDF engine. Documents are independent; there is no shared state.
func NewFitz() *Fitz {
	return &Fitz{}
}

func (e *Fitz) Open(pdf []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

func (e *Fitz) Close() error { return nil }

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPage() int { return d.doc.NumPage() }

// RenderPage returns a Go-allocated image; release is a no-op.
func (d *fitzDocument) RenderPage(index int, dpi float64) (image.Image, func(), error) {
	img, err := d.doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, func() {}, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	return img, func() {}, nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }
