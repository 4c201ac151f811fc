package raster

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

const instanceTimeout = 30 * time.Second

// PDFium renders with PDFium compiled to WebAssembly (pure Go, no CGo).
type PDFium struct {
	pool pdfium.Pool
}

// NewPDFium starts a WebAssembly worker pool with up to workers instances.
func NewPDFium(workers int) (*PDFium, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  workers,
		MaxTotal: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}
	return &PDFium{pool: pool}, nil
}

// Open loads pdf into a pooled PDFium instance. The instance stays leased
// until the returned Document is closed.
func (e *PDFium) Open(pdf []byte) (Document, error) {
	instance, err := e.pool.GetInstance(instanceTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &pdf})
	if err != nil {
		instance.Close()
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		instance.Close()
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}

	return &pdfiumDocument{instance: instance, doc: doc.Document, pages: count.PageCount}, nil
}

// Close shuts the worker pool down.
func (e *PDFium) Close() error {
	if e.pool == nil {
		return nil
	}
	err := e.pool.Close()
	e.pool = nil
	return err
}

type pdfiumDocument struct {
	instance pdfium.Pdfium
	doc      references.FPDF_DOCUMENT
	pages    int
}

func (d *pdfiumDocument) NumPage() int { return d.pages }

func (d *pdfiumDocument) RenderPage(index int, dpi float64) (image.Image, func(), error) {
	res, err := d.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(math.Round(dpi)),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.doc,
				Index:    index,
			},
		},
	})
	if err != nil {
		return nil, func() {}, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	return res.Result.Image, res.Cleanup, nil
}

func (d *pdfiumDocument) Close() error {
	_, err := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: d.doc})
	if cerr := d.instance.Close(); err == nil {
		err = cerr
	}
	return err
}
