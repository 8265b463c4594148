package connectors

import "errors"

// ErrUnsupportedConnector means the requested key is not in the catalog.
var ErrUnsupportedConnector = errors.New("unsupported connector")
