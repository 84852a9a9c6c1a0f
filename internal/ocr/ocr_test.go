package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	return f.fn(name, args)
}

func TestImageText_StagesAndCleansUp(t *testing.T) {
	var staged string
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		staged = args[0]
		data, err := os.ReadFile(staged)
		require.NoError(t, err)
		assert.Equal(t, "imgbytes", string(data))
		return []byte("1AJ   12000\r\n-----\r\n\n\n\nSalaires"), nil, nil
	}}
	e := NewExtractor(Config{TessdataDir: "/td"}, nil, WithRunner(r))

	txt, err := e.ImageText(context.Background(), []byte("imgbytes"), ".PNG")
	require.NoError(t, err)
	assert.Equal(t, "1AJ 12000\n\nSalaires", txt)

	require.Len(t, r.calls, 1)
	assert.Equal(t, "tesseract", r.calls[0].name)
	assert.Equal(t, []string{staged, "stdout", "-l", "fra", "--tessdata-dir", "/td"}, r.calls[0].args)
	assert.True(t, strings.HasSuffix(staged, "image.png"))

	_, statErr := os.Stat(filepath.Dir(staged))
	assert.True(t, os.IsNotExist(statErr), "staging dir must be removed")
}

func TestImageText_RunnerError(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	_, err := e.ImageText(context.Background(), []byte("x"), "jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract")
	assert.Contains(t, err.Error(), "Error opening data file")
}

func TestPDFText_JoinsPages(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		return []byte("page one\fpage two\f"), nil, nil
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	txt, err := e.PDFText(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "page one\n\npage two", txt)
	assert.Equal(t, "pdftotext", r.calls[0].name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}, r.calls[0].args[:5])
}

func TestPDFOCR_RasterisesThenRecognises(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftoppm":
			prefix := args[len(args)-1]
			for _, p := range []string{"-1.png", "-2.png", "-3.png"} {
				require.NoError(t, os.WriteFile(prefix+p, []byte("png"), 0o600))
			}
			return nil, nil, nil
		case "tesseract":
			if strings.HasSuffix(args[0], "-2.png") {
				return nil, nil, errors.New("boom")
			}
			return []byte("text of " + filepath.Base(args[0])), nil, nil
		}
		return nil, nil, errors.New("unexpected command " + name)
	}}
	e := NewExtractor(Config{DPI: 150, MaxPages: 3}, nil, WithRunner(r))

	txt, err := e.PDFOCR(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "text of page-1.png\n\ntext of page-3.png", txt)
	assert.Equal(t, "150", r.calls[0].args[1])
}

func TestPDFOCR_MaxPages(t *testing.T) {
	var ocrCalls int
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		if name == "pdftoppm" {
			prefix := args[len(args)-1]
			for _, p := range []string{"-1.png", "-2.png", "-3.png"} {
				require.NoError(t, os.WriteFile(prefix+p, []byte("png"), 0o600))
			}
			return nil, nil, nil
		}
		ocrCalls++
		return []byte("p"), nil, nil
	}}
	e := NewExtractor(Config{MaxPages: 2}, nil, WithRunner(r))

	_, err := e.PDFOCR(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, 2, ocrCalls)
}

func TestPDFOCR_NoImages(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) { return nil, nil, nil }}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	_, err := e.PDFOCR(context.Background(), []byte("%PDF"))
	require.Error(t, err)
}

func TestExtractor_CancelledContext(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) { return []byte("x"), nil, nil }}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ImageText(ctx, []byte("x"), "png")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.calls)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "a b\n\nc", Normalize("  a\t\tb  \r\n\r\n\r\n\r\nc  "))
	assert.Equal(t, "montant 01 000", Normalize("montant 01 000"), "digits are left alone")
}
