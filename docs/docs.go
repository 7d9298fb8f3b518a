// Package docs registers the catalog backup API description with swag.
package docs

import (
	_ "embed"
	"fmt"

	"github.com/ghodss/yaml"
	"github.com/swaggo/swag"
)

//go:embed swagger.yaml
var documentYAML []byte

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Title:            "Catalog Backup API",
	Description:      "Export, upload, analysis and selective restore of the product catalog.",
	InfoInstanceName: "swagger",
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	doc, err := yaml.YAMLToJSON(documentYAML)
	if err != nil {
		panic(fmt.Sprintf("docs: convert swagger.yaml: %v", err))
	}
	SwaggerInfo.SwaggerTemplate = string(doc)
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
