package extract

import (
	"context"
	"errors"
	"path/filepath"
)

func imageParser(o OCR) ParserFunc {
	return func(ctx context.Context, data []byte) (string, error) {
		txt, err := o.ImageText(ctx, data, filepath.Ext(filenameFrom(ctx)))
		if err != nil {
			return "", parseErr("image-ocr", err)
		}
		return txt, nil
	}
}

func pdfToolParser(name string, fn func(context.Context, []byte) (string, error)) ParserFunc {
	return func(ctx context.Context, data []byte) (string, error) {
		txt, err := fn(ctx, data)
		if err != nil {
			return "", parseErr(name, err)
		}
		return txt, nil
	}
}

var errArchive = errors.New("archives are expanded before dispatch")

type filenameKey struct{}

func withFilename(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, filenameKey{}, name)
}

// filenameFrom returns the name of the file being dispatched, "" outside Dispatch.
func filenameFrom(ctx context.Context) string {
	name, _ := ctx.Value(filenameKey{}).(string)
	return name
}
