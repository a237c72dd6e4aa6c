// Package docs holds the OpenAPI document served under /swagger. It keeps
// swag's generated layout, so `swag init -g cmd/main.go` can rewrite it from
// the handler annotations.
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
				"produces": [
					"application/json"
				],
				"tags": [
					"system"
				],
				"summary": "Health check",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				}
			}
		},
		"/auth/sign-up": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Sign up",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "integer"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Credentials",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.authCredentials"
						}
					}
				]
			}
		},
		"/auth/sign-in": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"auth"
				],
				"summary": "Sign in",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Credentials",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.authCredentials"
						}
					}
				]
			}
		},
		"/api/v1/control/state": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Latest control snapshot",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/cooling_control.StateResponse"
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				}
			}
		},
		"/api/v1/control/start": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Start the control loop",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/stop": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Stop the control loop",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/setpoint": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Set regulated temperature",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Setpoint in °C",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.SetpointRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/mode": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Switch auto/manual",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Mode payload",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.ModeRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/manual": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Set manual output",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Percent in [0,100]",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.PercentRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/alarm": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Set alarm threshold and output",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Alarm payload",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.AlarmRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/gains": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Set PID gains",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Gains payload",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.GainsRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/swap": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Swap regulated and protected sensors",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Swap payload",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.SwapRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/postrun": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Set postrun duration",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Postrun payload",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.PostrunRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/actuator/min": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Override actuator minimum",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Minimum payload",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.ActuatorMinRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/smoothing": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Configure EMA smoothing",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Smoothing payload",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.SmoothingRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/control/thermocouple": {
			"post": {
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"control"
				],
				"summary": "Select thermocouple type",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": true
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"description": "Thermocouple payload",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.ThermocoupleRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/diag/scan": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"diagnostics"
				],
				"summary": "Scan sensor buses",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/cooling_control.ScanResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/diag/read": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"diagnostics"
				],
				"summary": "Raw sensor read",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/cooling_control.RawReadResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"504": {
						"description": "Gateway Timeout",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/v1/logs": {
			"get": {
				"produces": [
					"application/json"
				],
				"tags": [
					"logs"
				],
				"summary": "List control events",
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/models.ControlEvent"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"500": {
						"description": "Internal Server Error",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"description": "Start of range",
						"name": "from",
						"in": "query"
					},
					{
						"type": "string",
						"description": "End of range",
						"name": "to",
						"in": "query"
					},
					{
						"type": "string",
						"description": "Event type",
						"name": "type",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "Most recent N events",
						"name": "limit",
						"in": "query"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		}
	},
	"definitions": {
		"handlers.authCredentials": {
			"type": "object",
			"properties": {
				"username": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"username",
				"password"
			]
		},
		"handlers.SetpointRequest": {
			"type": "object",
			"properties": {
				"setpoint": {
					"type": "number"
				}
			},
			"required": [
				"setpoint"
			]
		},
		"handlers.ModeRequest": {
			"type": "object",
			"properties": {
				"mode": {
					"type": "string",
					"enum": [
						"auto",
						"manual"
					]
				}
			},
			"required": [
				"mode"
			]
		},
		"handlers.PercentRequest": {
			"type": "object",
			"properties": {
				"percent": {
					"type": "number"
				}
			},
			"required": [
				"percent"
			]
		},
		"handlers.AlarmRequest": {
			"type": "object",
			"properties": {
				"threshold": {
					"type": "number"
				},
				"percent": {
					"type": "number"
				}
			}
		},
		"handlers.GainsRequest": {
			"type": "object",
			"properties": {
				"kp": {
					"type": "number"
				},
				"ki": {
					"type": "number"
				},
				"kd": {
					"type": "number"
				}
			},
			"required": [
				"kp",
				"ki",
				"kd"
			]
		},
		"handlers.SwapRequest": {
			"type": "object",
			"properties": {
				"swap": {
					"type": "boolean"
				}
			},
			"required": [
				"swap"
			]
		},
		"handlers.PostrunRequest": {
			"type": "object",
			"properties": {
				"seconds": {
					"type": "number"
				}
			},
			"required": [
				"seconds"
			]
		},
		"handlers.ActuatorMinRequest": {
			"type": "object",
			"properties": {
				"min": {
					"type": "integer"
				}
			}
		},
		"handlers.SmoothingRequest": {
			"type": "object",
			"properties": {
				"enabled": {
					"type": "boolean"
				},
				"alpha": {
					"type": "number"
				}
			},
			"required": [
				"enabled"
			]
		},
		"handlers.ThermocoupleRequest": {
			"type": "object",
			"properties": {
				"type": {
					"type": "string",
					"enum": [
						"K",
						"J",
						"T",
						"N",
						"S",
						"E",
						"B",
						"R"
					]
				}
			},
			"required": [
				"type"
			]
		},
		"cooling_control.ScanResponse": {
			"type": "object",
			"properties": {
				"i2c": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"one_wire": {
					"type": "array",
					"items": {
						"type": "string"
					}
				}
			}
		},
		"cooling_control.RawReading": {
			"type": "object",
			"properties": {
				"address": {
					"type": "string"
				},
				"label": {
					"type": "string"
				},
				"temperature": {
					"type": "number"
				},
				"ambient": {
					"type": "number"
				},
				"delta": {
					"type": "number"
				},
				"status": {
					"type": "string"
				},
				"stale_count": {
					"type": "integer"
				}
			}
		},
		"cooling_control.RawReadResponse": {
			"type": "object",
			"properties": {
				"channels": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/cooling_control.RawReading"
					}
				},
				"duration_ms": {
					"type": "integer"
				}
			}
		},
		"models.ControlEvent": {
			"type": "object",
			"properties": {
				"event_id": {
					"type": "string"
				},
				"occurred_at": {
					"type": "string"
				},
				"type": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"metadata": {
					"type": "object"
				}
			}
		},
		"cooling_control.StateResponse": {
			"type": "object",
			"properties": {
				"temperature1": {
					"type": "number"
				},
				"temperature2": {
					"type": "number"
				},
				"ambient1": {
					"type": "number"
				},
				"ambient2": {
					"type": "number"
				},
				"delta1": {
					"type": "number"
				},
				"delta2": {
					"type": "number"
				},
				"status1": {
					"type": "string"
				},
				"status2": {
					"type": "string"
				},
				"label1": {
					"type": "string"
				},
				"label2": {
					"type": "string"
				},
				"output_pct": {
					"type": "number"
				},
				"setpoint": {
					"type": "number"
				},
				"mode": {
					"type": "string"
				},
				"alarm_threshold": {
					"type": "number"
				},
				"manual_percent": {
					"type": "number"
				},
				"alarm_percent": {
					"type": "number"
				},
				"postrun_seconds": {
					"type": "number"
				},
				"postrun_until": {
					"type": "string"
				},
				"alarm_active": {
					"type": "boolean"
				},
				"alarm_state": {
					"type": "string",
					"enum": [
						"normal",
						"alarm",
						"postrun"
					]
				},
				"kp": {
					"type": "number"
				},
				"ki": {
					"type": "number"
				},
				"kd": {
					"type": "number"
				},
				"swap_sensors": {
					"type": "boolean"
				},
				"smoothing_enabled": {
					"type": "boolean"
				},
				"smoothing_alpha": {
					"type": "number"
				},
				"thermocouple_type": {
					"type": "string"
				},
				"actuator_min_override": {
					"type": "integer"
				},
				"actuator_fault": {
					"type": "string"
				},
				"actuator_available": {
					"type": "boolean"
				},
				"running": {
					"type": "boolean"
				},
				"tick": {
					"type": "integer"
				},
				"updated_at": {
					"type": "string"
				},
				"postrun_remaining_seconds": {
					"type": "number"
				}
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
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Cooling Control API",
	Description:      "Two-sensor cooling fan controller with alarm override and postrun.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
