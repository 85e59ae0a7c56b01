// Schema Generator
//
// Generates JSON Schema files from Go types for storefront widget and
// dashboard clients. Go is the source of truth for the API and event types.
//
// Usage:
//
//	go run ./cmd/schema-gen [output-dir]
//
// Output (default directory ./schemas):
//
//	compliance.json
//	widget.json
//	events.json
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/events"
	"github.com/prisvakt/compliance-service/internal/handlers"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

var schemaGroups = []SchemaGroup{
	{
		Name: "compliance",
		Types: []any{
			// Request types
			handlers.ListEvaluationsRequest{},
			handlers.UpsertShopRequest{},
			// Response types
			handlers.ListEvaluationsResponse{},
			handlers.HistoryResponse{},
			handlers.ScheduleResponse{},
			handlers.ErrorResponse{},
			database.EvaluationRecord{},
			database.ShopSummary{},
			compliance.RuleSet{},
		},
		Output: "compliance.json",
	},
	{
		Name: "widget",
		Types: []any{
			handlers.WidgetResponse{},
			handlers.WidgetLabels{},
			handlers.PricePoint{},
		},
		Output: "widget.json",
	},
	{
		Name: "events",
		Types: []any{
			events.ComplianceChanged{},
		},
		Output: "events.json",
	},
}

func main() {
	outputDir := "schemas"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, group := range schemaGroups {
		schema := generateGroupSchema(group)
		outputPath := filepath.Join(outputDir, group.Output)

		if err := writeSchema(schema, outputPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", group.Output, err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s\n", outputPath)
	}

	fmt.Println("Schema generation complete!")
}

var (
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
)

// mapDecimal describes shopspring decimals the way they marshal: as strings
func mapDecimal(t reflect.Type) *jsonschema.Schema {
	switch t {
	case decimalType:
		return &jsonschema.Schema{Type: "string", Pattern: `^-?\d+(\.\d+)?$`}
	case nullDecimalType:
		return &jsonschema.Schema{OneOf: []*jsonschema.Schema{
			{Type: "string", Pattern: `^-?\d+(\.\d+)?$`},
			{Type: "null"},
		}}
	}
	return nil
}

// generateGroupSchema creates a combined schema with all types in a group
func generateGroupSchema(group SchemaGroup) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference: false,
		ExpandedStruct: false,
		Mapper:         mapDecimal,
	}

	definitions := make(map[string]any)

	for _, t := range group.Types {
		schema := reflector.Reflect(t)

		// Extract type name from $ref like "#/$defs/WidgetResponse"
		typeName := ""
		if schema.Ref != "" {
			typeName = filepath.Base(schema.Ref)
		}

		for name, def := range schema.Definitions {
			definitions[name] = def
		}

		if typeName != "" && schema.Definitions[typeName] != nil {
			definitions[typeName] = schema.Definitions[typeName]
		}
	}

	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         fmt.Sprintf("https://prisvakt.no/schemas/%s.json", group.Name),
		"title":       fmt.Sprintf("%s API Types", capitalize(group.Name)),
		"description": fmt.Sprintf("JSON Schema for %s types generated from Go structs", group.Name),
		"$defs":       definitions,
	}
}

// writeSchema writes a schema to a JSON file
func writeSchema(schema map[string]any, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
