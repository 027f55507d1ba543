package domain

// Mission target bounds, fixed at mission creation.
const (
	MinTargets = 1
	MaxTargets = 3
)

type Cat struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	YearsOfExperience int     `json:"years_of_experience"`
	Breed             string  `json:"breed"`
	Salary            float64 `json:"salary"`
}

type Mission struct {
	ID       int64    `json:"id"`
	CatID    *int64   `json:"cat_id"`
	Complete bool     `json:"complete"`
	Cat      *Cat     `json:"cat"`
	Targets  []Target `json:"targets"`
}

// Assigned reports whether a cat reference is present.
func (m Mission) Assigned() bool { return m.CatID != nil }

type Target struct {
	ID        int64  `json:"id"`
	MissionID int64  `json:"mission_id"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	Notes     string `json:"notes"`
	Complete  bool   `json:"complete"`
}

// NewTarget is the client-supplied shape of a target at mission creation.
type NewTarget struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Notes   string `json:"notes,omitempty"`
}

// Locked reports whether the target rejects further mutation given its mission's state.
func (t Target) Locked(missionComplete bool) bool {
	return t.Complete || missionComplete
}
