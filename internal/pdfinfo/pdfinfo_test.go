package pdfinfo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docconv/internal/domain"
	"docconv/internal/pdftest"
)

func TestInspect_PagesInOrder(t *testing.T) {
	info, err := Inspect(pdftest.Build(pdftest.Pages(3)...))
	require.NoError(t, err)
	require.Len(t, info.Pages, 3)

	for i, p := range info.Pages {
		assert.Equal(t, i+1, p.Number)
		assert.Equal(t, float64(200+50*i), p.Width)
		assert.Equal(t, 300.0, p.Height)
	}
	assert.Contains(t, info.Pages[1].Text, "Page 2")
}

func TestInspect_RejectsNonPDF(t *testing.T) {
	_, err := Inspect([]byte("<html></html>"))
	assert.True(t, errors.Is(err, domain.ErrNotPDF))

	_, err = Inspect([]byte("%PDF-1.4\ngarbage"))
	assert.Error(t, err)
}
