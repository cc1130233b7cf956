package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestRegisteredSpecCoversRoutes(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var spec struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))
	assert.Equal(t, "/api/v1", spec.BasePath)

	routes := map[string][]string{
		"/ping":                     {"get"},
		"/auth/signup":              {"post"},
		"/auth/login":               {"post"},
		"/auth/{provider}":          {"get"},
		"/auth/{provider}/callback": {"get"},
		"/restaurants":              {"post"},
		"/restaurants/search":       {"get"},
		"/restaurants/{id}":         {"get"},
		"/clicks":                   {"post"},
		"/clicks/history":           {"get", "delete"},
		"/clicks/history/{userID}":  {"get"},
		"/recommendations":          {"post"},
		"/preferences":              {"get", "put"},
		"/chat":                     {"post"},
		"/chat/stream":              {"get"},
		"/chat/ws":                  {"get"},
		"/chat/history":             {"get", "delete"},
	}
	for path, methods := range routes {
		ops, ok := spec.Paths[path]
		if !assert.True(t, ok, path) {
			continue
		}
		for _, m := range methods {
			assert.Contains(t, ops, m, path)
		}
	}
	assert.Len(t, spec.Paths, len(routes))
}
