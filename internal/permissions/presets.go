package permissions

import "sort"

// Preset is a named capability bundle an administrator can apply.
type Preset struct {
	RoleType     RoleType     `json:"role_type"`
	Label        string       `json:"label"`
	Description  string       `json:"description"`
	Capabilities Capabilities `json:"permissions"`
}

var presets = map[RoleType]Preset{
	RoleTypeVM: {
		Label:       "VM",
		Description: "Files violations and edits own reports",
		Capabilities: Capabilities{
			ViewOwn: true, Create: true, EditOwn: true, ViewPhotos: true,
		},
	},
	RoleTypeGM: {
		Label:       "GM",
		Description: "Triages and sanctions violations in assigned branches",
		Capabilities: Capabilities{
			ViewBranch: true, Create: true, EditOwn: true, ApplySanctions: true,
			Reject: true, ViewSanctions: true, ViewPhotos: true, Export: true,
		},
	},
	RoleTypeProduction: {
		Label:       "Production",
		Description: "Read-only overview across branches",
		Capabilities: Capabilities{
			ViewAll: true, ViewSanctions: true, ViewPhotos: true, ViewAnalytics: true,
		},
	},
	RoleTypeOperations: {
		Label:       "Operations",
		Description: "Edits and sanctions any violation",
		Capabilities: Capabilities{
			ViewAll: true, EditAll: true, ApplySanctions: true, Reject: true,
			ViewSanctions: true, ViewPhotos: true, Export: true, ViewAnalytics: true,
		},
	},
	RoleTypeDirector: {
		Label:       "Director",
		Description: "Reporting and analytics across branches",
		Capabilities: Capabilities{
			ViewAll: true, ViewSanctions: true, ViewPhotos: true, Export: true,
			ViewAnalytics: true,
		},
	},
	RoleTypeAudit: {
		Label:       "Audit",
		Description: "Inspects every record and exports evidence",
		Capabilities: Capabilities{
			ViewAll: true, ViewSanctions: true, ViewPhotos: true, Export: true,
			ViewAnalytics: true,
		},
	},
	RoleTypeHR: {
		Label:       "HR",
		Description: "Applies sanctions and fines",
		Capabilities: Capabilities{
			ViewAll: true, ApplySanctions: true, ViewSanctions: true, ViewPhotos: true,
			Export: true,
		},
	},
	RoleTypeAdmin: {
		Label:        "Administrator",
		Description:  "Full access",
		Capabilities: all(),
	},
}

// PresetFor looks up a preset by role type.
func PresetFor(t RoleType) (Preset, bool) {
	p, ok := presets[t]
	if !ok {
		return Preset{}, false
	}
	p.RoleType = t
	return p, true
}

// Presets returns every preset sorted by role type.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for t := range presets {
		p, _ := PresetFor(t)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleType < out[j].RoleType })
	return out
}
