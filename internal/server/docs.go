package server

import (
	"encoding/json"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusUnprocessableEntity: "validation_failed",
	http.StatusInternalServerError: "internal_error",
}

// errorCode is the envelope code used when a handler supplies none.
func errorCode(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

func specPath(basePath string) string {
	return path.Join("/", basePath, "openapi.json")
}

// openAPIDocument renders the API description on first request.
type openAPIDocument struct {
	api  huma.API
	once sync.Once
	body []byte
	err  error
}

func (d *openAPIDocument) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	d.once.Do(func() {
		oas := d.api.OpenAPI()
		addErrorResponses(oas)
		d.body, d.err = json.Marshal(oas)
	})
	if d.err != nil {
		http.Error(w, d.err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(d.body)
}

// addErrorResponses documents the error envelope as every operation's default response.
func addErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Components == nil || oas.Components.Schemas == nil {
		return
	}
	envelope := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Post, item.Put, item.Delete} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error envelope",
				Content:     map[string]*huma.MediaType{"application/json": {Schema: envelope}},
			}
		}
	}
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>Spy Cat Agency API</title>
</head>
<body>
  <redoc spec-url="{{spec}}"></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>`

func registerSpec(r chi.Router, api huma.API, basePath string) {
	r.Method(http.MethodGet, specPath(basePath), &openAPIDocument{api: api})
	page := strings.ReplaceAll(docsPage, "{{spec}}", specPath(basePath))
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})
}
