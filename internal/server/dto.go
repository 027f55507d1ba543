package server

import (
	"spycats/internal/domain"
)

// Request payloads

type CreateCatRequest struct {
	Name              string  `json:"name" example:"Tom"`
	YearsOfExperience int     `json:"years_of_experience" minimum:"0" example:"3"`
	Breed             string  `json:"breed" example:"Abyssinian"`
	Salary            float64 `json:"salary" minimum:"0" example:"1000"`
}

type UpdateSalaryRequest struct {
	Salary float64 `json:"salary" minimum:"0" example:"1500"`
}

type TargetRequest struct {
	Name    string `json:"name" example:"A"`
	Country string `json:"country" example:"FR"`
	Notes   string `json:"notes,omitempty"`
}

type CreateMissionRequest struct {
	Targets []TargetRequest `json:"targets" minItems:"1" maxItems:"3"`
}

type AssignCatRequest struct {
	CatID int64 `json:"cat_id" example:"1"`
}

type UpdateTargetRequest struct {
	Notes    *string `json:"notes,omitempty"`
	Complete *bool   `json:"complete,omitempty"`
}

// Response payloads

type CatResponse struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	YearsOfExperience int     `json:"years_of_experience"`
	Breed             string  `json:"breed"`
	Salary            float64 `json:"salary"`
}

type TargetResponse struct {
	ID        int64  `json:"id"`
	MissionID int64  `json:"mission_id"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	Notes     string `json:"notes"`
	Complete  bool   `json:"complete"`
}

type MissionResponse struct {
	ID       int64            `json:"id"`
	CatID    *int64           `json:"cat_id"`
	Complete bool             `json:"complete"`
	Cat      *CatResponse     `json:"cat"`
	Targets  []TargetResponse `json:"targets"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// Conversion helpers

func catResponse(c domain.Cat) CatResponse {
	return CatResponse(c)
}

func targetResponse(t domain.Target) TargetResponse {
	return TargetResponse(t)
}

func missionResponse(m domain.Mission) MissionResponse {
	res := MissionResponse{
		ID:       m.ID,
		CatID:    m.CatID,
		Complete: m.Complete,
		Targets:  mapTargets(m.Targets),
	}
	if m.Cat != nil {
		c := catResponse(*m.Cat)
		res.Cat = &c
	}
	return res
}

func mapCats(items []domain.Cat) []CatResponse {
	out := make([]CatResponse, 0, len(items))
	for _, c := range items {
		out = append(out, catResponse(c))
	}
	return out
}

func mapTargets(items []domain.Target) []TargetResponse {
	out := make([]TargetResponse, 0, len(items))
	for _, t := range items {
		out = append(out, targetResponse(t))
	}
	return out
}

func mapMissions(items []domain.Mission) []MissionResponse {
	out := make([]MissionResponse, 0, len(items))
	for _, m := range items {
		out = append(out, missionResponse(m))
	}
	return out
}

func newTargets(in []TargetRequest) []domain.NewTarget {
	out := make([]domain.NewTarget, 0, len(in))
	for _, t := range in {
		out = append(out, domain.NewTarget(t))
	}
	return out
}
