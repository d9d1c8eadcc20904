package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CEE Allotment API",
        "description": "Multi-round capacitated seat allotment engine for entrance examinations",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and identity"},
        {"name": "Allotment", "description": "Seat allotment runs and results"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/status": {
            "get": {
                "tags": ["Allotment"],
                "summary": "Aggregated service counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allotment/runs": {
            "get": {
                "tags": ["Allotment"],
                "summary": "List allotment runs",
                "parameters": [
                    {"name": "program", "in": "query", "type": "string", "enum": ["DNM", "LLM", "PGM", "BLE"]},
                    {"name": "phase", "in": "query", "type": "integer"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "RUNNING", "COMPLETED", "FAILED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Allotment"],
                "summary": "Start an allotment run",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StartRunRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A run is already in progress for this program"}
                }
            }
        },
        "/allotment/runs/{id}": {
            "get": {
                "tags": ["Allotment"],
                "summary": "Get run status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "delete": {
                "tags": ["Allotment"],
                "summary": "Delete a finished run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Run has not finished yet"}
                }
            }
        },
        "/allotment/runs/{id}/records": {
            "get": {
                "tags": ["Allotment"],
                "summary": "List run records",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["ALLOTTED", "RETAINED", "BLOCKED", "UNALLOTTED", "WITHDRAWN"]},
                    {"name": "college", "in": "query", "type": "string"},
                    {"name": "course", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "roll_no", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allotment/runs/{id}/export": {
            "get": {
                "tags": ["Allotment"],
                "summary": "Export run results",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Rendered document"},
                    "409": {"description": "Run has not finished yet"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "StartRunRequest": {
            "type": "object",
            "properties": {
                "program": {"type": "string", "enum": ["DNM", "LLM", "PGM", "BLE"]},
                "phase": {"type": "integer", "minimum": 1, "maximum": 9},
                "eviction": {"type": "boolean"},
                "upgrade": {"type": "boolean"},
                "conversion": {"type": "boolean"}
            },
            "required": ["program", "phase"]
        },
        "RunResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "program": {"type": "string"},
                "phase": {"type": "integer"},
                "status": {"type": "string"},
                "stats": {"$ref": "#/definitions/RunStats"},
                "created_at": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "RunStats": {
            "type": "object",
            "properties": {
                "candidates": {"type": "integer"},
                "allotted": {"type": "integer"},
                "retained": {"type": "integer"},
                "blocked": {"type": "integer"},
                "unallotted": {"type": "integer"},
                "withdrawn": {"type": "integer"},
                "evictions": {"type": "integer"},
                "upgrades": {"type": "integer"},
                "conversions": {"type": "integer"}
            }
        },
        "RecordResponse": {
            "type": "object",
            "properties": {
                "roll_no": {"type": "integer"},
                "rank": {"type": "integer"},
                "status": {"type": "string"},
                "allot_code": {"type": "string"},
                "college": {"type": "string"},
                "course": {"type": "string"},
                "category": {"type": "string"},
                "op_no": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
