package app

// ModuleInfo describes a mounted API module for discovery.
type ModuleInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

// Modules lists the API modules served by this binary.
func Modules() []ModuleInfo {
	return []ModuleInfo{
		{Name: "auth", Path: "/api/auth", Version: Version},
		{Name: "users", Path: "/api/users", Version: Version},
		{Name: "branches", Path: "/api/branches", Version: Version},
		{Name: "violations", Path: "/api/violations", Version: Version},
		{Name: "violation_permissions", Path: "/api/violations/permissions", Version: Version},
		{Name: "incidents", Path: "/api/incidents", Version: Version},
		{Name: "audit", Path: "/api/audit", Version: Version},
	}
}
