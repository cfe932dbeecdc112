// Package docs registers the dashboard API description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["system"],
                "summary": "Health check",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/ws": {
            "get": {
                "tags": ["system"],
                "summary": "Push channel",
                "description": "Streams {\"type\":\"status\"|\"sensor\"|\"sensor_removed\"|\"actuators\",\"data\":...} envelopes. The current connection status is sent first.",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/auth/sign-in": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign in to the dashboard",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.signInInput"}}],
                "responses": {
                    "200": {"description": "token", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"$ref": "#/responses/Error"},
                    "401": {"$ref": "#/responses/Error"},
                    "404": {"$ref": "#/responses/Error"}
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "tags": ["connection"],
                "summary": "Connection status",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ConnectionStatus"}},
                    "503": {"$ref": "#/responses/Error"}
                }
            }
        },
        "/api/v1/credential": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["connection"],
                "summary": "Set the controller credential",
                "consumes": ["application/json"],
                "parameters": [{"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.credentialInput"}}],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"$ref": "#/responses/Error"},
                    "401": {"$ref": "#/responses/Error"},
                    "503": {"$ref": "#/responses/Error"}
                }
            }
        },
        "/api/v1/sensors": {
            "get": {
                "tags": ["sensors"],
                "summary": "List sensors",
                "produces": ["application/json"],
                "responses": {"200": {"description": "count, sensors", "schema": {"type": "object"}}}
            }
        },
        "/api/v1/sensors/{key}": {
            "get": {
                "tags": ["sensors"],
                "summary": "Sensor history",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "key", "in": "path", "required": true}],
                "responses": {"200": {"description": "sensor, log", "schema": {"type": "object"}}, "404": {"$ref": "#/responses/Error"}}
            }
        },
        "/api/v1/sensors/{key}/layout": {
            "get": {
                "tags": ["sensors"],
                "summary": "Graph layout",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "key", "in": "path", "required": true},
                    {"type": "number", "name": "width", "in": "query"},
                    {"type": "number", "name": "height", "in": "query"},
                    {"type": "number", "name": "dpr", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"$ref": "#/responses/Error"},
                    "404": {"$ref": "#/responses/Error"},
                    "500": {"$ref": "#/responses/Error"}
                }
            }
        },
        "/api/v1/sensors/{key}/graph.svg": {
            "get": {
                "tags": ["sensors"],
                "summary": "Graph image",
                "produces": ["image/svg+xml"],
                "parameters": [
                    {"type": "string", "name": "key", "in": "path", "required": true},
                    {"type": "number", "name": "width", "in": "query"},
                    {"type": "number", "name": "height", "in": "query"},
                    {"type": "number", "name": "dpr", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}}
            }
        },
        "/api/v1/actuators": {
            "get": {
                "tags": ["actuators"],
                "summary": "Actuator state",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/api/v1/actuators/{name}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["actuators"],
                "summary": "Edit an actuator attribute",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "name", "in": "path", "required": true},
                    {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.actuatorEditInput"}}
                ],
                "responses": {
                    "200": {"description": "changed, sent", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}},
                    "400": {"$ref": "#/responses/Error"},
                    "401": {"$ref": "#/responses/Error"},
                    "404": {"$ref": "#/responses/Error"}
                }
            }
        },
        "/api/v1/actuators/{name}/inputs": {
            "get": {
                "tags": ["actuators"],
                "summary": "Actuator widget values",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}, "404": {"$ref": "#/responses/Error"}}
            }
        },
        "/api/v1/logs": {
            "get": {
                "tags": ["logs"],
                "summary": "Connection log",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "from", "in": "query"},
                    {"type": "string", "name": "to", "in": "query"},
                    {"enum": ["CONNECTING", "CONNECTED", "ERRORED", "DISCONNECTED"], "type": "string", "name": "state", "in": "query"}
                ],
                "responses": {"200": {"description": "count, events", "schema": {"type": "object"}}, "400": {"$ref": "#/responses/Error"}, "500": {"$ref": "#/responses/Error"}}
            }
        },
        "/api/v1/preferences/tab": {
            "get": {
                "tags": ["preferences"],
                "summary": "Selected dashboard tab",
                "produces": ["application/json"],
                "responses": {"200": {"description": "tab", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["preferences"],
                "summary": "Remember the selected dashboard tab",
                "consumes": ["application/json"],
                "parameters": [{"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.tabInput"}}],
                "responses": {"204": {"description": "No Content"}, "400": {"$ref": "#/responses/Error"}}
            }
        }
    },
    "definitions": {
        "handlers.signInInput": {
            "type": "object",
            "required": ["password"],
            "properties": {"password": {"type": "string"}}
        },
        "handlers.credentialInput": {
            "type": "object",
            "properties": {"credential": {"type": "string"}}
        },
        "handlers.tabInput": {
            "type": "object",
            "required": ["tab"],
            "properties": {"tab": {"type": "string"}}
        },
        "handlers.actuatorEditInput": {
            "type": "object",
            "required": ["attribute", "value"],
            "properties": {"attribute": {"type": "string"}, "value": {}}
        },
        "models.ConnectionStatus": {
            "type": "object",
            "properties": {
                "state": {"type": "string"},
                "message": {"type": "string"},
                "category": {"type": "string", "enum": ["connecting", "connected", "error"]},
                "reconnect_attempt": {"type": "integer"}
            }
        }
    },
    "responses": {
        "Error": {
            "description": "Error",
            "schema": {"type": "object", "properties": {"error": {"type": "string"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "domo dashboard API",
	Description:      "Sensor history, actuator settings and controller connection of the home automation client.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
