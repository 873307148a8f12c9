package mcp

// allToolDefinitions returns all tool definitions in display order.
// Tools are grouped by Konnect API area: analytics, configuration, control planes.
func allToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		// =====================================================================
		// Analytics
		// =====================================================================
		defQueryAPIRequests,
		defGetConsumerRequests,

		// =====================================================================
		// Configuration
		// =====================================================================
		defListServices,
		defListRoutes,
		defListConsumers,
		defListPlugins,

		// =====================================================================
		// Control Planes
		// =====================================================================
		defListControlPlanes,
		defGetControlPlane,
		defListControlPlaneGroupMemberships,
		defCheckControlPlaneGroupMembership,
	}
}

// =============================================================================
// Shared property schemas
// =============================================================================

func timeRangeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []interface{}{"15M", "1H", "6H", "12H", "24H", "7D"},
		"default":     "1H",
		"description": "Relative time window to query: 15M, 1H, 6H, 12H, 24H or 7D",
	}
}

func maxResultsProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"minimum":     1,
		"maximum":     1000,
		"default":     100,
		"description": "Maximum number of request records to return",
	}
}

func controlPlaneIDProperty(what string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"minLength":   1,
		"description": "Control plane ID " + what + " (obtain it from list_control_planes)",
	}
}

func pageSizeProperty(def int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"minimum":     1,
		"maximum":     1000,
		"default":     def,
		"description": "Number of items to return per page",
	}
}

// entityListSchema is shared by the configuration listing tools.
func entityListSchema(kind string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"controlPlaneId": controlPlaneIDProperty("that owns the " + kind),
			"size":           pageSizeProperty(100),
			"offset": map[string]interface{}{
				"type":        "string",
				"description": "Offset token from a previous page (metadata.nextOffset)",
			},
		},
		"required": []interface{}{"controlPlaneId"},
	}
}

// =============================================================================
// Analytics Definitions
// =============================================================================

var defQueryAPIRequests = ToolDefinition{
	Name: "query_api_requests",
	Description: "Query and analyze Kong API Gateway requests with filters. Returns individual request records " +
		"(method, URI, status, latency, consumer, service, route) from the selected time window. " +
		"Use this to investigate traffic patterns, errors, or slow requests.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timeRange": timeRangeProperty(),
			"statusCodes": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "integer", "minimum": 100, "maximum": 599},
				"description": "Only include these HTTP status codes (e.g. [500, 502])",
			},
			"excludeStatusCodes": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "integer", "minimum": 100, "maximum": 599},
				"description": "Exclude these HTTP status codes",
			},
			"httpMethods": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Only include these HTTP methods (e.g. [\"GET\", \"POST\"])",
			},
			"consumerIds": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Only include requests from these consumer IDs",
			},
			"serviceIds": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Only include requests to these gateway service IDs",
			},
			"routeIds": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Only include requests matching these route IDs",
			},
			"maxResults": maxResultsProperty(),
		},
	},
}

var defGetConsumerRequests = ToolDefinition{
	Name: "get_consumer_requests",
	Description: "Retrieve and analyze API requests made by a specific consumer. Returns the requests plus " +
		"statistics: success rate, status code distribution, and the most used endpoints.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"consumerId": map[string]interface{}{
				"type":        "string",
				"minLength":   1,
				"description": "Consumer ID to analyze (obtain it from list_consumers)",
			},
			"timeRange": timeRangeProperty(),
			"successOnly": map[string]interface{}{
				"type":        "boolean",
				"default":     false,
				"description": "Only include 2xx responses",
			},
			"failureOnly": map[string]interface{}{
				"type":        "boolean",
				"default":     false,
				"description": "Only include 4xx and 5xx responses",
			},
			"maxResults": maxResultsProperty(),
		},
		"required": []interface{}{"consumerId"},
	},
}

// =============================================================================
// Configuration Definitions
// =============================================================================

var defListServices = ToolDefinition{
	Name:        "list_services",
	Description: "List all gateway services in a control plane. Returns service ID, name, host, port, protocol, path, and timestamps.",
	InputSchema: entityListSchema("services"),
}

var defListRoutes = ToolDefinition{
	Name:        "list_routes",
	Description: "List all routes in a control plane. Returns route ID, name, paths, methods, hosts, and the service each route belongs to.",
	InputSchema: entityListSchema("routes"),
}

var defListConsumers = ToolDefinition{
	Name:        "list_consumers",
	Description: "List all consumers in a control plane. Returns consumer ID, username, custom ID, and tags.",
	InputSchema: entityListSchema("consumers"),
}

var defListPlugins = ToolDefinition{
	Name:        "list_plugins",
	Description: "List all plugins in a control plane. Returns plugin ID, name, enabled state, scope (service, route, consumer), and configuration.",
	InputSchema: entityListSchema("plugins"),
}

// =============================================================================
// Control Plane Definitions
// =============================================================================

var defListControlPlanes = ToolDefinition{
	Name:        "list_control_planes",
	Description: "List all control planes in your Konnect organization, with optional filtering by name, cluster type, cloud gateway support, and labels.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pageSize": pageSizeProperty(10),
			"pageNumber": map[string]interface{}{
				"type":        "integer",
				"minimum":     1,
				"description": "Page number to fetch",
			},
			"filterName": map[string]interface{}{
				"type":        "string",
				"description": "Only include control planes whose name contains this value",
			},
			"filterClusterType": map[string]interface{}{
				"type":        "string",
				"enum":        []interface{}{"CLUSTER_TYPE_CONTROL_PLANE", "CLUSTER_TYPE_K8S_INGRESS_CONTROLLER", "CLUSTER_TYPE_CONTROL_PLANE_GROUP", "CLUSTER_TYPE_SERVERLESS"},
				"description": "Only include control planes of this cluster type",
			},
			"filterCloudGateway": map[string]interface{}{
				"type":        "boolean",
				"description": "Only include control planes with (true) or without (false) cloud gateway support",
			},
			"labels": map[string]interface{}{
				"type":        "string",
				"description": "Label filter in key:value form (e.g. env:prod)",
			},
			"sort": map[string]interface{}{
				"type":        "string",
				"description": "Sort field, optionally followed by ' desc' (e.g. \"name\" or \"created_at desc\")",
			},
		},
	},
}

var defGetControlPlane = ToolDefinition{
	Name:        "get_control_plane",
	Description: "Get detailed information about a specific control plane: name, description, cluster type, endpoints, labels, and timestamps.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"controlPlaneId": controlPlaneIDProperty("to retrieve"),
		},
		"required": []interface{}{"controlPlaneId"},
	},
}

var defListControlPlaneGroupMemberships = ToolDefinition{
	Name:        "list_control_plane_group_memberships",
	Description: "List all control planes that are members of a control plane group.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"groupId": map[string]interface{}{
				"type":        "string",
				"minLength":   1,
				"description": "Control plane group ID (a control plane of type CLUSTER_TYPE_CONTROL_PLANE_GROUP)",
			},
			"pageSize": pageSizeProperty(10),
			"pageAfter": map[string]interface{}{
				"type":        "string",
				"description": "Cursor from a previous page (metadata.next)",
			},
		},
		"required": []interface{}{"groupId"},
	},
}

var defCheckControlPlaneGroupMembership = ToolDefinition{
	Name:        "check_control_plane_group_membership",
	Description: "Check whether a control plane is a member of any control plane group.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"controlPlaneId": controlPlaneIDProperty("to check"),
		},
		"required": []interface{}{"controlPlaneId"},
	},
}
