// Package apiv1 embeds the OpenAPI v2 document of the HTTP API.
package apiv1

import _ "embed"

// Spec contains the OpenAPI v2 JSON description of the /v1/otp endpoints.
// It is embedded at compile time so the binary works with scratch-based
// production images.
//
//go:embed openapi.swagger.json
var Spec []byte
