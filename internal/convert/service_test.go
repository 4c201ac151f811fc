package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docconv/internal/codec"
	"docconv/internal/config"
	"docconv/internal/domain"
	"docconv/internal/infra/cache"
	"docconv/internal/pdftest"
	"docconv/internal/raster"
)

type fakeRenderer struct {
	out   []byte
	err   error
	calls int
	last  RenderRequest
}

func (f *fakeRenderer) Render(_ context.Context, req RenderRequest) ([]byte, error) {
	f.calls++
	f.last = req
	return f.out, f.err
}

type fakeEngine struct {
	doc     *fakeDocument
	openErr error
}

func (e *fakeEngine) Open([]byte) (raster.Document, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.doc, nil
}

func (e *fakeEngine) Close() error { return nil }

type fakeDocument struct {
	widths   []int
	failAt   int
	released []int
	dpis     []float64
	closed   bool
}

func (d *fakeDocument) NumPage() int { return len(d.widths) }

func (d *fakeDocument) RenderPage(index int, dpi float64) (image.Image, func(), error) {
	d.dpis = append(d.dpis, dpi)
	release := func() { d.released = append(d.released, index) }
	if index == d.failAt {
		return nil, release, errors.New("page exploded")
	}
	img := image.NewRGBA(image.Rect(0, 0, d.widths[index], 10))
	img.Set(0, 0, color.Black)
	return img, release, nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

func decodePNG(t *testing.T, b64 string) image.Image {
	t.Helper()
	raw, err := codec.Base64ToBytes(b64)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")), "not a PNG")
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestRenderHTMLToPDF_PassesRequestScopedOptions(t *testing.T) {
	cfg := config.Default()
	cfg.PDF.DefaultPaper = "LETTER"
	r := &fakeRenderer{out: []byte("%PDF-1.7 body")}
	svc := NewService(cfg, r, &fakeEngine{}, nil)

	out, err := svc.RenderHTMLToPDF(context.Background(), "<p>x</p>", []string{"a{}", "b{}"})
	require.NoError(t, err)

	raw, err := codec.Base64ToBytes(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 body"), raw)

	assert.Equal(t, "<p>x</p>", r.last.HTML)
	assert.Equal(t, []string{"a{}", "b{}"}, r.last.Stylesheets)
	assert.Equal(t, config.PaperSize{Width: 8.5, Height: 11}, r.last.Options.Paper)
	assert.Equal(t, cfg.Timeout(), r.last.Options.Timeout)
	assert.Equal(t, 0.4, r.last.Options.Margin)
}

func TestRenderHTMLToPDF_EmptyHTMLStillRenders(t *testing.T) {
	r := &fakeRenderer{out: []byte("%PDF-1.4")}
	svc := NewService(config.Default(), r, &fakeEngine{}, nil)

	out, err := svc.RenderHTMLToPDF(context.Background(), "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, 1, r.calls)
}

func TestRenderHTMLToPDF_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxPDFBytes = 16

	cases := []struct {
		name   string
		r      *fakeRenderer
		target error
	}{
		{"renderer failure", &fakeRenderer{err: errors.New("chrome crashed")}, nil},
		{"not a pdf", &fakeRenderer{out: []byte("<html>")}, domain.ErrNotPDF},
		{"too large", &fakeRenderer{out: []byte("%PDF-1.4 0123456789abcdef")}, domain.ErrPDFTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(cfg, tc.r, &fakeEngine{}, nil)
			_, err := svc.RenderHTMLToPDF(context.Background(), "<p/>", nil)
			require.Error(t, err)
			assert.Equal(t, domain.KindRender, domain.KindOf(err))
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
		})
	}
}

func TestRenderHTMLToPDF_CacheHitSkipsRenderer(t *testing.T) {
	mrs, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mrs.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := &fakeRenderer{out: []byte("%PDF-1.4 cached")}
	svc := NewService(config.Default(), r, &fakeEngine{}, cache.New(rdb, 0))

	first, err := svc.RenderHTMLToPDF(context.Background(), "<p>x</p>", []string{"p{}"})
	require.NoError(t, err)
	second, err := svc.RenderHTMLToPDF(context.Background(), "<p>x</p>", []string{"p{}"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.calls)

	// a different stylesheet list is a different document
	_, err = svc.RenderHTMLToPDF(context.Background(), "<p>x</p>", []string{"p{color:red}"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
}

func TestRasterize_PagesInOrderAndReleased(t *testing.T) {
	doc := &fakeDocument{widths: []int{30, 20, 10}, failAt: -1}
	svc := NewService(config.Default(), &fakeRenderer{}, &fakeEngine{doc: doc}, nil)

	images, err := svc.RasterizePDFToImages(context.Background(), codec.BytesToBase64([]byte("%PDF")), 0)
	require.NoError(t, err)
	require.Len(t, images, 3)
	for i, w := range []int{30, 20, 10} {
		assert.Equal(t, w, decodePNG(t, images[i]).Bounds().Dx(), "page %d", i)
	}
	assert.Equal(t, []int{0, 1, 2}, doc.released)
	assert.True(t, doc.closed)
}

func TestRasterize_PageFailureFailsWholeCall(t *testing.T) {
	doc := &fakeDocument{widths: []int{10, 10, 10}, failAt: 1}
	svc := NewService(config.Default(), &fakeRenderer{}, &fakeEngine{doc: doc}, nil)

	images, err := svc.RasterizePDFToImages(context.Background(), codec.BytesToBase64([]byte("%PDF")), 72)
	require.Error(t, err)
	assert.Nil(t, images)
	assert.Equal(t, domain.KindRender, domain.KindOf(err))
	assert.Equal(t, []int{0, 1}, doc.released)
	assert.True(t, doc.closed)
}

func TestRasterize_MaxWidthDownscales(t *testing.T) {
	cfg := config.Default()
	cfg.Raster.MaxWidth = 15
	doc := &fakeDocument{widths: []int{30, 10}, failAt: -1}
	svc := NewService(cfg, &fakeRenderer{}, &fakeEngine{doc: doc}, nil)

	images, err := svc.RasterizePDFToImages(context.Background(), codec.BytesToBase64([]byte("%PDF")), 72)
	require.NoError(t, err)
	assert.Equal(t, 15, decodePNG(t, images[0]).Bounds().Dx())
	assert.Equal(t, 10, decodePNG(t, images[1]).Bounds().Dx())
}

func TestRasterize_RoundsDPI(t *testing.T) {
	cfg := config.Default()
	cfg.Raster.DPI = 150.4
	doc := &fakeDocument{widths: []int{10}, failAt: -1}
	svc := NewService(cfg, &fakeRenderer{}, &fakeEngine{doc: doc}, nil)

	for _, dpi := range []float64{72.9, 72.2, 0} {
		_, err := svc.RasterizePDFToImages(context.Background(), codec.BytesToBase64([]byte("%PDF")), dpi)
		require.NoError(t, err)
	}
	assert.Equal(t, []float64{73, 72, 150}, doc.dpis)
}

func TestRasterize_InputErrors(t *testing.T) {
	svc := NewService(config.Default(), &fakeRenderer{}, &fakeEngine{doc: &fakeDocument{failAt: -1}}, nil)

	_, err := svc.RasterizePDFToImages(context.Background(), "not base64!!", 0)
	assert.Equal(t, domain.KindDecode, domain.KindOf(err))

	_, err = svc.RasterizePDFToImages(context.Background(), codec.BytesToBase64([]byte("%PDF")), 0)
	assert.ErrorIs(t, err, domain.ErrNoPages)

	broken := NewService(config.Default(), &fakeRenderer{}, &fakeEngine{openErr: errors.New("bad xref")}, nil)
	_, err = broken.RasterizePDFToImages(context.Background(), codec.BytesToBase64([]byte("junk")), 0)
	assert.Equal(t, domain.KindRender, domain.KindOf(err))
}

func TestRasterize_WithPDFium(t *testing.T) {
	engine, err := raster.NewPDFium(1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	svc := NewService(config.Default(), &fakeRenderer{}, engine, nil)
	pdf := pdftest.Build(pdftest.Pages(2)...)

	images, err := svc.RasterizePDFToImages(context.Background(), codec.BytesToBase64(pdf), 72)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, 200, decodePNG(t, images[0]).Bounds().Dx())
	assert.Equal(t, 250, decodePNG(t, images[1]).Bounds().Dx())
}
