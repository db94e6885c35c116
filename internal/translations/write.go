package translations

import (
	"context"
	"os"

	"github.com/ulikunitz/xz"

	cerrors "github.com/EvanderIV/theology/core/errors"
	"github.com/EvanderIV/theology/core/scripture"
)

// Write stores ds at path in the format its extension names.
// OSIS output is not supported.
func Write(ctx context.Context, ds *scripture.Dataset, path string) error {
	_, format, ok := DetectFormat(path)
	if !ok {
		return cerrors.NewUnsupported("output format", path)
	}

	switch format {
	case FormatSQLite:
		return WriteSQLite(ctx, ds, path)
	case FormatJSON:
		return writeFile(path, func(f *os.File) error { return WriteJSON(f, ds) })
	case FormatJSONXZ:
		return writeFile(path, func(f *os.File) error {
			xzw, err := xz.NewWriter(f)
			if err != nil {
				return err
			}
			if err := WriteJSON(xzw, ds); err != nil {
				_ = xzw.Close()
				return err
			}
			return xzw.Close()
		})
	}
	return cerrors.NewUnsupported("output format", string(format))
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return cerrors.NewIO("create", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return cerrors.NewIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return cerrors.NewIO("close", path, err)
	}
	return nil
}
