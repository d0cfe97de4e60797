package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// Session method overrides: session lifecycle RPCs are audited on resource "device_session".
var methodOverrides = map[string]ActionResource{
	"/fieldsales.session.v1.SessionService/LogoutAll":      {Action: "logout_all", Resource: "device_session"},
	"/fieldsales.session.v1.SessionService/ListMySessions": {Action: "list", Resource: "device_session"},
	"/fieldsales.session.v1.SessionService/Heartbeat":      {Action: "heartbeat", Resource: "device_session"},
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /fieldsales.sync.v1.SyncService/Push).
// Action is a verb: get, list, create, update, delete, pull, push, or a lowercase method name for others.
// Resource is derived from the service name (e.g. SyncService -> sync, SessionService -> device_session).
func ParseFullMethod(fullMethod string) ActionResource {
	if ar, ok := methodOverrides[fullMethod]; ok {
		return ar
	}
	// fullMethod format: /fieldsales.package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	serviceName := beforeSlash[dot+1:]
	resource := serviceToResource(serviceName)
	action := methodToAction(method)
	return ActionResource{Action: action, Resource: resource}
}

func serviceToResource(serviceName string) string {
	// SyncService -> sync, SessionService -> device_session
	if serviceName == "SessionService" {
		return "device_session"
	}
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	switch {
	case strings.HasPrefix(method, "Get") && method != "Get":
		return "get"
	case strings.HasPrefix(method, "List"):
		return "list"
	case strings.HasPrefix(method, "Create"):
		return "create"
	case strings.HasPrefix(method, "Update"):
		return "update"
	case strings.HasPrefix(method, "Delete"):
		return "delete"
	case strings.HasPrefix(method, "Add"):
		return "add"
	case strings.HasPrefix(method, "Remove"):
		return "remove"
	case strings.HasPrefix(method, "Register"):
		return "register"
	case strings.HasPrefix(method, "Revoke"):
		return "revoke"
	case strings.HasPrefix(method, "Logout"):
		return "logout"
	case strings.HasPrefix(method, "Pull"):
		return "pull"
	case strings.HasPrefix(method, "Push"):
		return "push"
	default:
		return strings.ToLower(method)
	}
}
