package trainer

import (
	"errors"

	"shapelab/internal/dataset"
	"shapelab/internal/refit"
)

var (
	// ErrEmptyExport means the fitter produced no shape functions at all.
	ErrEmptyExport = errors.New("model exported no shape functions")
	// ErrUnknownModel is returned for a model variant that does not exist.
	ErrUnknownModel = errors.New("unknown model variant")
)

// IsClientError reports whether err was caused by the request rather than the
// service: an unknown dataset or model, an operation the model cannot do, or a
// malformed edit.
func IsClientError(err error) bool {
	return errors.Is(err, dataset.ErrUnknownDataset) ||
		errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, refit.ErrUnsupportedOperation) ||
		errors.Is(err, refit.ErrInvalidEdit)
}
