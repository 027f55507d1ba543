package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"spycats/internal/engine"
)

type missionPath struct {
	MissionID int64 `path:"mission_id" doc:"Mission id"`
}

type targetPath struct {
	TargetID int64 `path:"target_id" doc:"Target id"`
}

func registerMissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-mission",
		Method:        http.MethodPost,
		Path:          "/missions",
		Summary:       "Create mission with targets",
		Tags:          []string{"missions"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateMissionRequest `json:"body"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		m, err := e.CreateMission(ctx, newTargets(input.Body.Targets))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-missions",
		Method:      http.MethodGet,
		Path:        "/missions",
		Summary:     "List missions",
		Tags:        []string{"missions"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *listWindow) (*struct {
		Body []MissionResponse `json:"body"`
	}, error) {
		missions, err := e.ListMissions(ctx, input.Skip, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MissionResponse `json:"body"`
		}{Body: mapMissions(missions)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mission",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}",
		Summary:     "Get mission",
		Tags:        []string{"missions"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *missionPath) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		m, err := e.GetMission(ctx, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-cat",
		Method:      http.MethodPut,
		Path:        "/missions/{mission_id}/assign",
		Summary:     "Assign a spy cat to a mission",
		Description: "Rejected when the mission or cat is missing, or the cat already has an incomplete mission.",
		Tags:        []string{"missions"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		MissionID int64            `path:"mission_id"`
		Body      AssignCatRequest `json:"body"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		m, err := e.AssignCat(ctx, input.MissionID, input.Body.CatID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-mission",
		Method:        http.MethodDelete,
		Path:          "/missions/{mission_id}",
		Summary:       "Delete an unassigned mission",
		Tags:          []string{"missions"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *missionPath) (*struct{}, error) {
		ok, err := e.DeleteMission(ctx, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "mission_not_deletable",
				fmt.Sprintf("cannot delete mission %d: it is assigned to a cat or does not exist", input.MissionID),
				map[string]any{"mission_id": input.MissionID})
		}
		return &struct{}{}, nil
	})
}

func registerTargets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-target",
		Method:      http.MethodGet,
		Path:        "/missions/targets/{target_id}",
		Summary:     "Get target",
		Tags:        []string{"targets"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *targetPath) (*struct {
		Body TargetResponse `json:"body"`
	}, error) {
		t, err := e.GetTarget(ctx, input.TargetID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TargetResponse `json:"body"`
		}{Body: targetResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-target",
		Method:      http.MethodPut,
		Path:        "/missions/targets/{target_id}",
		Summary:     "Update target notes or completion",
		Description: "Rejected when the target is missing, already complete, or its mission is complete.",
		Tags:        []string{"targets"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		TargetID int64              `path:"target_id"`
		Body     UpdateTargetRequest `json:"body"`
	}) (*struct {
		Body TargetResponse `json:"body"`
	}, error) {
		t, err := e.UpdateTarget(ctx, engine.TargetUpdateOptions{
			ID:       input.TargetID,
			Notes:    input.Body.Notes,
			Complete: input.Body.Complete,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TargetResponse `json:"body"`
		}{Body: targetResponse(t)}, nil
	})
}
