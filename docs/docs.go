// Package docs registers the admin API's Swagger spec with swaggo/swag so
// internal/http/router.go can serve it at /swagger/*any. Normally produced
// by `swag init` from the @-annotations on the handlers in
// internal/http/handlers; checked in here hand-written in the same shape
// swag would generate, since this repo does not run the swag CLI as part of
// its build.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Prompt Challenge Admin API",
        "description": "Admin operations surface for the attempt-processing engine: toggle, reload, stats, ban/unban, level reset, queue clear, log export.",
        "version": "1.0"
    },
    "basePath": "{{.BasePath}}",
    "paths": {
        "/toggle": {
            "post": {
                "tags": ["admin"],
                "summary": "Toggle the activity on or off",
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reload": {
            "post": {
                "tags": ["admin"],
                "summary": "Reload the activity, levels, and rewards documents",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/stats": {
            "get": {
                "tags": ["admin"],
                "summary": "Point-in-time queue and throughput stats",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ban": {
            "post": {
                "tags": ["admin"],
                "summary": "Ban a user",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/unban": {
            "post": {
                "tags": ["admin"],
                "summary": "Unban a user",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/queue/clear": {
            "post": {
                "tags": ["admin"],
                "summary": "Drop every pending task and release its session",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/logs/export": {
            "get": {
                "tags": ["admin"],
                "summary": "Export a day's audit log events",
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds the Swagger spec metadata consumed by gin-swagger.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/admin",
	Schemes:          []string{},
	Title:            "Prompt Challenge Admin API",
	Description:      "Admin operations surface for the attempt-processing engine.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
