// Package docs embeds the OpenAPI description served under /swagger.
package docs

import _ "embed"

// OpenAPI is the raw OpenAPI 3 document.
//
//go:embed openapi.yaml
var OpenAPI []byte
