package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "BTO Allocation API",
        "description": "Build-To-Order public housing unit allocation service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, tokens and password management"},
        {"name": "Users", "description": "Account provisioning"},
        {"name": "Projects", "description": "BTO launches, inventory and visibility"},
        {"name": "Applications", "description": "Flat application lifecycle"},
        {"name": "Registrations", "description": "Officer project registrations"},
        {"name": "Bookings", "description": "Unit booking by handling officers"},
        {"name": "Enquiries", "description": "Applicant enquiries and staff replies"},
        {"name": "Receipts", "description": "Asynchronous receipt and report generation"}
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate by NRIC and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Exchange refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/projects": {
            "get": {
                "tags": ["Projects"],
                "summary": "List projects",
                "parameters": [
                    {"name": "neighborhood", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Projects"],
                "summary": "Create project",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/projects/{id}": {
            "get": {
                "tags": ["Projects"],
                "summary": "Get project with inventory and roster",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Projects"],
                "summary": "Delete project without unresolved applications",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Project has unresolved applications"}
                }
            }
        },
        "/applications": {
            "get": {
                "tags": ["Applications"],
                "summary": "List applications",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Submit application",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitApplicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate active application"},
                    "422": {"description": "Eligibility rules not satisfied"}
                }
            }
        },
        "/applications/{id}/review": {
            "post": {
                "tags": ["Applications"],
                "summary": "Review pending application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not reviewable from current status"}
                }
            }
        },
        "/registrations": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Request to administer a project",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Registration already exists"},
                    "422": {"description": "Eligibility rules not satisfied"}
                }
            }
        },
        "/bookings": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a unit for a successful applicant",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PerformBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "No remaining units or duplicate booking"}
                }
            }
        },
        "/receipts": {
            "post": {
                "tags": ["Receipts"],
                "summary": "Queue a booking receipt document",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/download/{token}": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Download generated document via signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "nric": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["nric", "password"]
        },
        "CreateProjectRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "neighborhood": {"type": "string"},
                "open_date": {"type": "string", "format": "date-time"},
                "close_date": {"type": "string", "format": "date-time"},
                "officer_slots": {"type": "integer"},
                "units": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/UnitAllocation"}
                }
            },
            "required": ["name", "neighborhood", "open_date", "close_date", "units"]
        },
        "UnitAllocation": {
            "type": "object",
            "properties": {
                "unit_type": {"type": "string", "enum": ["TWO_ROOM", "THREE_ROOM"]},
                "total": {"type": "integer"}
            }
        },
        "SubmitApplicationRequest": {
            "type": "object",
            "properties": {
                "project_id": {"type": "string"},
                "preferred_type": {"type": "string", "enum": ["TWO_ROOM", "THREE_ROOM"]}
            },
            "required": ["project_id", "preferred_type"]
        },
        "ReviewRequest": {
            "type": "object",
            "properties": {
                "approve": {"type": "boolean"}
            }
        },
        "PerformBookingRequest": {
            "type": "object",
            "properties": {
                "applicant_id": {"type": "string"},
                "unit_type": {"type": "string", "enum": ["TWO_ROOM", "THREE_ROOM"]}
            },
            "required": ["applicant_id", "unit_type"]
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
