// Package docs registers the polyvoice OpenAPI document with swag so the
// Swagger UI can serve it at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/speak": {
            "post": {
                "consumes": ["application/json", "text/plain"],
                "produces": ["application/json"],
                "tags": ["speech"],
                "summary": "Speak a sequence",
                "parameters": [
                    {
                        "description": "Speak request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/message.SpeakRequest"}
                    },
                    {
                        "type": "string",
                        "description": "Sender identifier (used with text/plain bodies)",
                        "name": "X-Polyvoice-Source",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {"description": "Dispatch result", "schema": {"$ref": "#/definitions/message.SpeakResult"}},
                    "400": {"description": "Invalid request body", "schema": {"type": "string"}},
                    "500": {"description": "Internal processing error", "schema": {"type": "string"}}
                }
            }
        },
        "/spell": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["speech"],
                "summary": "Spell text",
                "parameters": [
                    {
                        "description": "Spell request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/message.SpellRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Dispatch result", "schema": {"$ref": "#/definitions/message.SpeakResult"}},
                    "400": {"description": "Invalid request body", "schema": {"type": "string"}},
                    "500": {"description": "Internal processing error", "schema": {"type": "string"}}
                }
            }
        },
        "/cancel": {
            "post": {
                "tags": ["speech"],
                "summary": "Stop speaking",
                "responses": {
                    "204": {"description": "No Content"},
                    "500": {"description": "Engine error", "schema": {"type": "string"}}
                }
            }
        },
        "/pause": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["speech"],
                "summary": "Pause or resume speech",
                "parameters": [
                    {
                        "description": "Pause state",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/message.PauseRequest"}
                    }
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Invalid request body", "schema": {"type": "string"}},
                    "500": {"description": "Engine error", "schema": {"type": "string"}}
                }
            }
        },
        "/settings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Current settings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.Settings"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["settings"],
                "summary": "Change settings",
                "parameters": [
                    {
                        "description": "Settings to change",
                        "name": "patch",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/message.SettingsPatch"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.Settings"}},
                    "400": {"description": "Invalid settings", "schema": {"type": "string"}}
                }
            }
        },
        "/events": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["speech"],
                "summary": "Engine progress stream",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.Event"}}
                }
            }
        }
    },
    "definitions": {
        "message.SpeakRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "source": {"type": "string"},
                "sequence": {"type": "array", "items": {"type": "object"}},
                "text": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "message.SpeakResult": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "commands": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "message.SpellRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "source": {"type": "string"},
                "text": {"type": "string"},
                "locale": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "message.PauseRequest": {
            "type": "object",
            "properties": {
                "paused": {"type": "boolean"}
            }
        },
        "message.Settings": {
            "type": "object",
            "properties": {
                "voice": {"type": "string"},
                "variant": {"type": "string"},
                "rate": {"type": "integer"},
                "pitch": {"type": "integer"},
                "volume": {"type": "integer"},
                "number_language": {"type": "string"},
                "number_mode": {"type": "string"},
                "chinese_space": {"type": "integer"},
                "ignore_comma_between_numbers": {"type": "boolean"},
                "ignore_document_language": {"type": "boolean"},
                "use_rules": {"type": "boolean"},
                "unicode_detection": {"type": "boolean"},
                "after_symbol_detection": {"type": "boolean"},
                "max_chunk_length": {"type": "integer"},
                "languages": {"type": "array", "items": {"type": "string"}}
            }
        },
        "message.SettingsPatch": {
            "type": "object",
            "properties": {
                "voice": {"type": "string"},
                "variant": {"type": "string"},
                "rate": {"type": "integer"},
                "pitch": {"type": "integer"},
                "volume": {"type": "integer"},
                "number_language": {"type": "string"},
                "number_mode": {"type": "string"},
                "chinese_space": {"type": "integer"},
                "ignore_comma_between_numbers": {"type": "boolean"},
                "ignore_document_language": {"type": "boolean"},
                "use_rules": {"type": "boolean"},
                "unicode_detection": {"type": "boolean"},
                "after_symbol_detection": {"type": "boolean"},
                "max_chunk_length": {"type": "integer"}
            }
        },
        "message.Event": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["index", "done"]},
                "index": {"type": "integer"},
                "time": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "polyvoice API",
	Description:      "Multi-voice speech dispatch: rewrite a speech sequence and speak it one voice at a time.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
