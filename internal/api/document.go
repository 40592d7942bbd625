package api

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// OpenAPIDocument returns the OpenAPI 3 description of the HTTP API.
func OpenAPIDocument() []byte {
	return openAPIDocument
}

// ServeOpenAPI writes the OpenAPI document as YAML.
func ServeOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openAPIDocument)
}
