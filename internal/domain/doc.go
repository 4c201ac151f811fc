// Package domain contains the core concepts shared by the conversion service:
// operation names and the error kinds reported at the dispatcher boundary.
// Keep this package free of transport (HTTP, Lambda) and engine (Chrome, PDFium) concerns.
package domain

// Operation names accepted in a request envelope.
const (
	OpRenderHTMLToPDF      = "renderHtmlToPdf"
	OpRasterizePDFToImages = "rasterizePdfToImages"
)
