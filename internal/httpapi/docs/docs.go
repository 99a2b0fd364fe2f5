// Package docs registers the Swagger spec consumed by swaggo/gin-swagger.
// Grounded on the teacher's cmd/main.go, which shells out to `swag init` at
// startup and imports its generated docs package; this module hand-maintains
// the same shape (SwaggerInfo + swag.Register) instead of depending on a
// build-time codegen step.
package docs

import (
	"github.com/swaggo/swag"
)

const template = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/bots": {"get": {"tags": ["bots"], "summary": "List the caller's bots", "responses": {"200": {"description": "ok"}}}},
        "/analytics/performance": {"get": {"tags": ["analytics"], "summary": "Per-bot performance over a time range", "responses": {"200": {"description": "ok"}}}},
        "/leaderboard": {"get": {"tags": ["leaderboard"], "summary": "Ranked bots for a period", "responses": {"200": {"description": "ok"}}}},
        "/admin/stats": {"get": {"tags": ["admin"], "summary": "Process-wide dashboard counts", "responses": {"200": {"description": "ok"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "Bot Arena API",
	Description:      "Multi-tenant trading bot arena: bots, providers, wallets, leaderboard, analytics, admin.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  template,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
