// Package docs embeds the published OpenAPI description of the API.
package docs

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
