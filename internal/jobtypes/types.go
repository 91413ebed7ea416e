package jobtypes

import "strings"

// TID is an opaque transaction identifier. Callers (the IPC collaborator)
// generate it; the core treats it as an immutable key.
type TID string

// Role is the semantic category of a job. It is set exactly once per
// Backend Engine; RoleUnknown is the only valid value before assignment.
type Role string

const (
	RoleUnknown      Role = "unknown"
	RoleQuery        Role = "query"
	RoleRefreshCache Role = "refresh-cache"
	RoleInstall      Role = "install"
	RoleRemove       Role = "remove"
	RoleUpdate       Role = "update"
	RoleSystemUpdate Role = "system-update"
)

// Status is a coarse progress tag updated many times during a job.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusSetup   Status = "setup"
	StatusQuery   Status = "query"
	StatusRemove  Status = "remove"
	StatusDownload Status = "download"
	StatusInstall Status = "install"
	StatusUpdate  Status = "update"
	StatusExit    Status = "exit"
)

// Exit is the terminal outcome tag of a job.
type Exit string

const (
	ExitUnknown  Exit = ""
	ExitSuccess  Exit = "success"
	ExitFailed   Exit = "failed"
	ExitCanceled Exit = "canceled"
)

// ErrorCode names the well-known error kinds an ErrorCode event may carry.
type ErrorCode string

const (
	ErrorCodeNotSupported  ErrorCode = "not-supported"
	ErrorCodeInternalError ErrorCode = "internal-error"
)

// GroupName is the enum a description event's group-name field is
// translated through. Unknown names map to GroupUnknown rather than an
// error, per the Helper Protocol Parser contract.
type GroupName string

const (
	GroupUnknown       GroupName = "unknown"
	GroupAccessibility GroupName = "accessibility"
	GroupAdminTools    GroupName = "admin-tools"
	GroupDesktopGnome  GroupName = "desktop-gnome"
	GroupDesktopKde    GroupName = "desktop-kde"
	GroupDevelopment   GroupName = "development"
	GroupFonts         GroupName = "fonts"
	GroupGames         GroupName = "games"
	GroupGraphics      GroupName = "graphics"
	GroupInternet      GroupName = "internet"
	GroupLocalization  GroupName = "localization"
	GroupMultimedia    GroupName = "multimedia"
	GroupNetwork       GroupName = "network"
	GroupOffice        GroupName = "office"
	GroupOther         GroupName = "other"
	GroupPowerManagement GroupName = "power-management"
	GroupProgramming   GroupName = "programming"
	GroupPublishing    GroupName = "publishing"
	GroupSecurity      GroupName = "security"
	GroupServers       GroupName = "servers"
	GroupSystem        GroupName = "system"
	GroupVirtualization GroupName = "virtualization"
)

var groupNames = map[string]GroupName{
	"accessibility":     GroupAccessibility,
	"admin-tools":       GroupAdminTools,
	"desktop-gnome":     GroupDesktopGnome,
	"desktop-kde":       GroupDesktopKde,
	"development":       GroupDevelopment,
	"fonts":             GroupFonts,
	"games":             GroupGames,
	"graphics":          GroupGraphics,
	"internet":          GroupInternet,
	"localization":      GroupLocalization,
	"multimedia":        GroupMultimedia,
	"network":           GroupNetwork,
	"office":            GroupOffice,
	"other":             GroupOther,
	"power-management":  GroupPowerManagement,
	"programming":       GroupProgramming,
	"publishing":        GroupPublishing,
	"security":          GroupSecurity,
	"servers":           GroupServers,
	"system":            GroupSystem,
	"virtualization":    GroupVirtualization,
}

// ParseGroupName translates a helper-supplied group name into the GroupName
// enum. Unknown names map to GroupUnknown rather than an error.
func ParseGroupName(s string) GroupName {
	if g, ok := groupNames[s]; ok {
		return g
	}
	return GroupUnknown
}

// PackageID is an opaque package identifier with an externally defined
// syntactic check: four semicolon-separated fields (name;version;arch;data),
// following the PackageKit package-id convention. Only the name field must
// be non-empty; the other fields may be empty but the separators must be
// present.
type PackageID string

// Valid reports whether p satisfies the package-id syntax. The parser
// rejects events carrying a malformed identifier rather than failing the
// job.
func (p PackageID) Valid() bool {
	if p == "" {
		return false
	}
	parts := strings.Split(string(p), ";")
	if len(parts) != 4 {
		return false
	}
	return parts[0] != ""
}
