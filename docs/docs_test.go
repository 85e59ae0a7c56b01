package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSwaggerInfoMetadata verifies the API metadata carried by SwaggerInfo.
func TestSwaggerInfoMetadata(t *testing.T) {
	assert.Equal(t, "Price Compliance Service API", SwaggerInfo.Title)
	assert.Equal(t, "1.0", SwaggerInfo.Version)
	assert.Equal(t, "/", SwaggerInfo.BasePath)
	assert.Equal(t, "swagger", SwaggerInfo.InfoInstanceName)
	assert.NotEmpty(t, SwaggerInfo.Description)
}

func TestSwaggerTemplate(t *testing.T) {
	template := SwaggerInfo.SwaggerTemplate
	require.NotEmpty(t, template)
	assert.Contains(t, template, `"swagger": "2.0"`)
	assert.Contains(t, template, `"paths":`)
	assert.Contains(t, template, `"definitions":`)
	assert.Contains(t, template, `"securityDefinitions":`)
}

func readDoc(t *testing.T) map[string]interface{} {
	t.Helper()
	doc := SwaggerInfo.ReadDoc()
	require.NotEmpty(t, doc)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed), "ReadDoc should return valid JSON")
	return parsed
}

func TestSwaggerInfoReadDoc(t *testing.T) {
	parsed := readDoc(t)

	info, ok := parsed["info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Price Compliance Service API", info["title"])
	assert.Equal(t, "1.0", info["version"])
	assert.Equal(t, "/", parsed["basePath"])
	assert.Equal(t, "2.0", parsed["swagger"])
}

func TestSwaggerInfoHasEndpoints(t *testing.T) {
	paths, ok := readDoc(t)["paths"].(map[string]interface{})
	require.True(t, ok)

	expected := map[string]string{
		"/health":                                                     "get",
		"/widget/{shop}/{productId}/{variantId}":                      "get",
		"/internal/shops/{shop}":                                      "put",
		"/internal/scans/{shop}":                                      "post",
		"/internal/tasks/{taskId}":                                    "get",
		"/internal/compliance/{shop}":                                 "get",
		"/internal/compliance/{shop}/summary":                         "get",
		"/internal/compliance/{shop}/report.xlsx":                     "get",
		"/internal/compliance/{shop}/{productId}/{variantId}":         "get",
		"/internal/compliance/{shop}/{productId}/{variantId}/history": "get",
		"/internal/compliance/{shop}/{productId}/{variantId}/recheck": "post",
	}

	for path, method := range expected {
		ops, exists := paths[path].(map[string]interface{})
		if assert.True(t, exists, "path %s should exist", path) {
			assert.Contains(t, ops, method, "path %s should document %s", path, method)
		}
	}
}

func TestSwaggerInfoHasDefinitions(t *testing.T) {
	definitions, ok := readDoc(t)["definitions"].(map[string]interface{})
	require.True(t, ok)

	for _, name := range []string{
		"database.EvaluationRecord",
		"database.ShopSummary",
		"handlers.ListEvaluationsResponse",
		"handlers.HistoryResponse",
		"handlers.ScheduleResponse",
		"handlers.UpsertShopRequest",
		"handlers.WidgetResponse",
		"taskqueue.Task",
	} {
		assert.Contains(t, definitions, name)
	}
}
