package systems

// Phase identifiers, in the order a step runs them. They double as perf
// phase names.
const (
	PhaseGravity    = "gravity"
	PhaseDiffusion  = "diffusion"
	PhaseSaturation = "saturation"
	PhaseRelaxation = "relaxation"
	PhaseMovement   = "movement"
	PhaseSnapshot   = "snapshot"
)

// Phase categories.
const (
	CategoryForces    = "forces"
	CategoryFlow      = "flow"
	CategoryTransport = "transport"
	CategoryOutput    = "output"
)

// PhaseInfo describes a step phase for logs, perf output and the viewer.
type PhaseInfo struct {
	ID          string // Internal identifier (used for perf tracking)
	Name        string // Display name
	Description string
	Category    string
}

// PhaseRegistry holds metadata about all step phases.
// This keeps phase naming in one place so perf output and the viewer agree.
type PhaseRegistry struct {
	phases []PhaseInfo
}

// NewPhaseRegistry creates a registry with every phase of a step.
func NewPhaseRegistry() *PhaseRegistry {
	reg := &PhaseRegistry{}
	reg.registerDefaults()
	return reg
}

func (r *PhaseRegistry) registerDefaults() {
	r.Register(PhaseInfo{ID: PhaseGravity, Name: "Gravity", Description: "Adds the driving capacity on downward edges", Category: CategoryForces})
	r.Register(PhaseInfo{ID: PhaseDiffusion, Name: "Diffusion", Description: "Turns pressure differences into capacity", Category: CategoryForces})
	r.Register(PhaseInfo{ID: PhaseSaturation, Name: "Saturation", Description: "Pushes flow around cycles until no push succeeds", Category: CategoryFlow})
	r.Register(PhaseInfo{ID: PhaseRelaxation, Name: "Relaxation", Description: "Replaces capacity by flow and returns the excess as pressure", Category: CategoryFlow})
	r.Register(PhaseInfo{ID: PhaseMovement, Name: "Movement", Description: "Resolves movement chains and rotates occupants", Category: CategoryTransport})
	r.Register(PhaseInfo{ID: PhaseSnapshot, Name: "Snapshot", Description: "Writes the grid after a step with movement", Category: CategoryOutput})
}

// Register adds a phase to the registry.
func (r *PhaseRegistry) Register(info PhaseInfo) {
	r.phases = append(r.phases, info)
}

// All returns all registered phases.
func (r *PhaseRegistry) All() []PhaseInfo {
	return r.phases
}

// ByCategory returns phases filtered by category.
func (r *PhaseRegistry) ByCategory(category string) []PhaseInfo {
	var result []PhaseInfo
	for _, info := range r.phases {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// IDs returns all phase IDs in registration order.
func (r *PhaseRegistry) IDs() []string {
	ids := make([]string, len(r.phases))
	for i, info := range r.phases {
		ids[i] = info.ID
	}
	return ids
}
