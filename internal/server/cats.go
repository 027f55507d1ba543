package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"spycats/internal/engine"
)

type catPath struct {
	CatID int64 `path:"cat_id" doc:"Spy cat id"`
}

type listWindow struct {
	Skip  int `query:"skip" default:"0" minimum:"0" doc:"Number of records to skip"`
	Limit int `query:"limit" default:"100" minimum:"0" doc:"Maximum number of records to return"`
}

func registerCats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-spy-cat",
		Method:        http.MethodPost,
		Path:          "/spy-cats",
		Summary:       "Create spy cat",
		Description:   "The breed is checked against the external breed registry.",
		Tags:          []string{"spy-cats"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateCatRequest `json:"body"`
	}) (*struct {
		Body CatResponse `json:"body"`
	}, error) {
		c, err := e.CreateCat(ctx, engine.CatCreateOptions{
			Name:              input.Body.Name,
			YearsOfExperience: input.Body.YearsOfExperience,
			Breed:             input.Body.Breed,
			Salary:            input.Body.Salary,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CatResponse `json:"body"`
		}{Body: catResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-spy-cats",
		Method:      http.MethodGet,
		Path:        "/spy-cats",
		Summary:     "List spy cats",
		Tags:        []string{"spy-cats"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *listWindow) (*struct {
		Body []CatResponse `json:"body"`
	}, error) {
		cats, err := e.ListCats(ctx, input.Skip, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CatResponse `json:"body"`
		}{Body: mapCats(cats)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-available-spy-cats",
		Method:      http.MethodGet,
		Path:        "/spy-cats/available",
		Summary:     "List spy cats without an active mission",
		Tags:        []string{"spy-cats"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CatResponse `json:"body"`
	}, error) {
		cats, err := e.ListAvailableCats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CatResponse `json:"body"`
		}{Body: mapCats(cats)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-spy-cat",
		Method:      http.MethodGet,
		Path:        "/spy-cats/{cat_id}",
		Summary:     "Get spy cat",
		Tags:        []string{"spy-cats"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *catPath) (*struct {
		Body CatResponse `json:"body"`
	}, error) {
		c, err := e.GetCat(ctx, input.CatID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CatResponse `json:"body"`
		}{Body: catResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-spy-cat-salary",
		Method:      http.MethodPut,
		Path:        "/spy-cats/{cat_id}",
		Summary:     "Update spy cat salary",
		Tags:        []string{"spy-cats"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CatID int64               `path:"cat_id"`
		Body  UpdateSalaryRequest `json:"body"`
	}) (*struct {
		Body CatResponse `json:"body"`
	}, error) {
		c, err := e.UpdateCatSalary(ctx, input.CatID, input.Body.Salary)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CatResponse `json:"body"`
		}{Body: catResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-spy-cat",
		Method:        http.MethodDelete,
		Path:          "/spy-cats/{cat_id}",
		Summary:       "Delete spy cat",
		Tags:          []string{"spy-cats"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *catPath) (*struct{}, error) {
		ok, err := e.DeleteCat(ctx, input.CatID)
		if err != nil {
			return nil, handleError(err)
		}
		if !ok {
			return nil, notFound("spy cat", input.CatID)
		}
		return &struct{}{}, nil
	})
}
