package export

import "errors"

// ErrUnsupportedFormat is returned for formats other than xlsx and pdf.
var ErrUnsupportedFormat = errors.New("unsupported export format")
