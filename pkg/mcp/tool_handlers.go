package mcp

import (
	"context"

	"github.com/CAcquaviva/mcp-konnect/pkg/konnect"
)

// toolFunc forwards one tool invocation to the Konnect API. The returned
// value is rendered as indented JSON.
type toolFunc func(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error)

// toolRoutes is the routing table from tool name to forwarding function.
// Every registered tool must have exactly one entry.
func toolRoutes() map[string]toolFunc {
	return map[string]toolFunc{
		// Analytics
		"query_api_requests":    handleQueryAPIRequests,
		"get_consumer_requests": handleGetConsumerRequests,

		// Configuration
		"list_services":  handleListServices,
		"list_routes":    handleListRoutes,
		"list_consumers": handleListConsumers,
		"list_plugins":   handleListPlugins,

		// Control Planes
		"list_control_planes":                  handleListControlPlanes,
		"get_control_plane":                    handleGetControlPlane,
		"list_control_plane_group_memberships": handleListControlPlaneGroupMemberships,
		"check_control_plane_group_membership": handleCheckControlPlaneGroupMembership,
	}
}

// =============================================================================
// Analytics
// =============================================================================

func handleQueryAPIRequests(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.QueryAPIRequests(ctx, konnect.QueryAPIRequestsParams{
		TimeRange:          getString(args, "timeRange", konnect.DefaultTimeRange),
		StatusCodes:        getIntSlice(args, "statusCodes"),
		ExcludeStatusCodes: getIntSlice(args, "excludeStatusCodes"),
		HTTPMethods:        getStringSlice(args, "httpMethods"),
		ConsumerIDs:        getStringSlice(args, "consumerIds"),
		ServiceIDs:         getStringSlice(args, "serviceIds"),
		RouteIDs:           getStringSlice(args, "routeIds"),
		MaxResults:         getInt(args, "maxResults", 100),
	})
}

func handleGetConsumerRequests(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.GetConsumerRequests(ctx, konnect.ConsumerRequestsParams{
		ConsumerID:  getString(args, "consumerId", ""),
		TimeRange:   getString(args, "timeRange", konnect.DefaultTimeRange),
		SuccessOnly: getBool(args, "successOnly", false),
		FailureOnly: getBool(args, "failureOnly", false),
		MaxResults:  getInt(args, "maxResults", 100),
	})
}

// =============================================================================
// Configuration
// =============================================================================

func entityListParams(args map[string]interface{}) konnect.EntityListParams {
	return konnect.EntityListParams{
		ControlPlaneID: getString(args, "controlPlaneId", ""),
		Size:           getInt(args, "size", konnect.DefaultPageSize),
		Offset:         getString(args, "offset", ""),
	}
}

func handleListServices(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.ListServices(ctx, entityListParams(args))
}

func handleListRoutes(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.ListRoutes(ctx, entityListParams(args))
}

func handleListConsumers(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.ListConsumers(ctx, entityListParams(args))
}

func handleListPlugins(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.ListPlugins(ctx, entityListParams(args))
}

// =============================================================================
// Control Planes
// =============================================================================

func handleListControlPlanes(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.ListControlPlanes(ctx, konnect.ListControlPlanesParams{
		PageSize:           getInt(args, "pageSize", 10),
		PageNumber:         getInt(args, "pageNumber", 1),
		FilterName:         getString(args, "filterName", ""),
		FilterClusterType:  getString(args, "filterClusterType", ""),
		FilterCloudGateway: getBoolPtr(args, "filterCloudGateway"),
		Labels:             getString(args, "labels", ""),
		Sort:               getString(args, "sort", ""),
	})
}

func handleGetControlPlane(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.GetControlPlane(ctx, getString(args, "controlPlaneId", ""))
}

func handleListControlPlaneGroupMemberships(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.ListControlPlaneGroupMemberships(ctx, konnect.GroupMembershipsParams{
		GroupID:   getString(args, "groupId", ""),
		PageSize:  getInt(args, "pageSize", 10),
		PageAfter: getString(args, "pageAfter", ""),
	})
}

func handleCheckControlPlaneGroupMembership(ctx context.Context, api konnect.API, args map[string]interface{}) (interface{}, error) {
	return api.CheckControlPlaneGroupMembership(ctx, getString(args, "controlPlaneId", ""))
}
