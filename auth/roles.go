// Package auth implements staff accounts for LAN clients: role-based
// permissions, bcrypt password hashing and signed session tokens.
package auth

// Role is a staff account's access level.
type Role string

const (
	RoleAdmin  Role = "admin"  // full access including settings
	RoleStaff  Role = "staff"  // read/write, no settings
	RoleViewer Role = "viewer" // read only
)

// ParseRole maps a stored role string to a Role, defaulting to viewer for
// anything unrecognized so a corrupted row can never widen access.
func ParseRole(s string) Role {
	switch s {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleStaff):
		return RoleStaff
	default:
		return RoleViewer
	}
}

// Permissions is the per-area access matrix attached to an account.
type Permissions struct {
	PatientsRead       bool `json:"patients_read"`
	PatientsWrite      bool `json:"patients_write"`
	PrescriptionsRead  bool `json:"prescriptions_read"`
	PrescriptionsWrite bool `json:"prescriptions_write"`
	ChartsRead         bool `json:"charts_read"`
	ChartsWrite        bool `json:"charts_write"`
	SurveyRead         bool `json:"survey_read"`
	SurveyWrite        bool `json:"survey_write"`
	SettingsRead       bool `json:"settings_read"`
	MedicationsRead    bool `json:"medications_read"`
	MedicationsWrite   bool `json:"medications_write"`
}

// PermissionsFor returns the default permission matrix for a role.
func PermissionsFor(role Role) Permissions {
	switch role {
	case RoleAdmin:
		return Permissions{
			PatientsRead: true, PatientsWrite: true,
			PrescriptionsRead: true, PrescriptionsWrite: true,
			ChartsRead: true, ChartsWrite: true,
			SurveyRead: true, SurveyWrite: true,
			SettingsRead:    true,
			MedicationsRead: true, MedicationsWrite: true,
		}
	case RoleStaff:
		return Permissions{
			PatientsRead: true, PatientsWrite: true,
			PrescriptionsRead: true, PrescriptionsWrite: true,
			ChartsRead: true, ChartsWrite: true,
			SurveyRead: true, SurveyWrite: true,
			MedicationsRead: true, MedicationsWrite: true,
		}
	default:
		return Permissions{
			PatientsRead:      true,
			PrescriptionsRead: true,
			ChartsRead:        true,
			SurveyRead:        true,
			MedicationsRead:   true,
		}
	}
}
