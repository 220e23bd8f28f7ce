// Package docs holds the OpenAPI description served under /docs.
// It is produced by swag init from the handler annotations; see cmd/bookstore.
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
        "/books": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Add a book to the catalog",
                "parameters": [
                    {
                        "description": "Book",
                        "name": "book",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.bookRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.bookResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/books/{isbn}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["books"],
                "summary": "Get a book",
                "parameters": [
                    {"type": "string", "description": "ISBN, hyphens allowed", "name": "isbn", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.bookResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/guest-orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get a guest order with its passcode",
                "parameters": [
                    {"type": "string", "description": "Order id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Passcode returned at submission", "name": "otp", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.orderResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/orders": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List own orders, newest first",
                "parameters": [
                    {"type": "integer", "description": "Zero based page", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/http.orderResponse"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Submit an order",
                "parameters": [
                    {
                        "description": "Line items and payment method, customer information for guests",
                        "name": "order",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.orderRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.orderResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/orders/payment/return": {
            "get": {
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Gateway return url, reconciles the payment result",
                "parameters": [
                    {"type": "string", "description": "Order id", "name": "vnp_TxnRef", "in": "query", "required": true},
                    {"type": "string", "description": "Gateway response code", "name": "vnp_ResponseCode", "in": "query", "required": true},
                    {"type": "string", "description": "Signature", "name": "vnp_SecureHash", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.orderResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get an order",
                "parameters": [
                    {"type": "string", "description": "Order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.orderResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/orders/{id}/accept": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Accept a cash on delivery order and commit its stock",
                "parameters": [
                    {"type": "string", "description": "Order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.orderResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/orders/{id}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Cancel an order that is still waiting",
                "parameters": [
                    {"type": "string", "description": "Order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.orderResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/orders/{id}/payment": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Get the gateway payment link of an order",
                "parameters": [
                    {"type": "string", "description": "Order id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Passcode, for guest orders", "name": "otp", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.paymentURLResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.bookRequest": {
            "type": "object",
            "required": ["author", "isbn", "price", "title"],
            "properties": {
                "author": {"type": "string", "maxLength": 255},
                "inventory": {"type": "integer", "minimum": 0},
                "isbn": {"type": "string"},
                "price": {"type": "integer"},
                "title": {"type": "string", "maxLength": 255}
            }
        },
        "http.bookResponse": {
            "type": "object",
            "properties": {
                "author": {"type": "string"},
                "inventory": {"type": "integer"},
                "isbn": {"type": "string"},
                "price": {"type": "integer"},
                "purchases": {"type": "integer"},
                "title": {"type": "string"}
            }
        },
        "http.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "retryable": {"type": "boolean"}
            }
        },
        "http.lineItemRequest": {
            "type": "object",
            "required": ["isbn", "quantity"],
            "properties": {
                "isbn": {"type": "string"},
                "quantity": {"type": "integer"}
            }
        },
        "http.lineItemResponse": {
            "type": "object",
            "properties": {
                "isbn": {"type": "string"},
                "price": {"type": "integer"},
                "quantity": {"type": "integer"},
                "totalPrice": {"type": "integer"}
            }
        },
        "http.orderRequest": {
            "type": "object",
            "required": ["lineItems", "paymentMethod"],
            "properties": {
                "lineItems": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/http.lineItemRequest"}},
                "paymentMethod": {"type": "string"},
                "userInformation": {"$ref": "#/definitions/http.userInformation"}
            }
        },
        "http.orderResponse": {
            "type": "object",
            "properties": {
                "createdBy": {"type": "string"},
                "createdDate": {"type": "string"},
                "id": {"type": "string"},
                "lastModifiedBy": {"type": "string"},
                "lastModifiedDate": {"type": "string"},
                "lineItems": {"type": "array", "items": {"$ref": "#/definitions/http.lineItemResponse"}},
                "otp": {"type": "string"},
                "otpExpiredAt": {"type": "string"},
                "paymentMethod": {"type": "string"},
                "status": {"type": "string"},
                "totalPrice": {"type": "integer"},
                "userInformation": {"$ref": "#/definitions/http.userInformation"},
                "version": {"type": "integer"}
            }
        },
        "http.paymentURLResponse": {
            "type": "object",
            "properties": {
                "paymentUrl": {"type": "string"}
            }
        },
        "http.userInformation": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "email": {"type": "string"},
                "fullName": {"type": "string"},
                "phoneNumber": {"type": "string"}
            }
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
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Bookstore order service",
	Description:      "Orders, stock commitment and VNPay payments for the bookstore.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
