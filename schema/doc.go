// Package schema provides a small JSON-Schema value type used to request
// and validate structured LLM output.
//
// Schemas are built with composable constructors:
//
//	planSchema := schema.Object(map[string]schema.JSON{
//		"files": schema.Array(schema.Object(map[string]schema.JSON{
//			"path":     schema.String(),
//			"reason":   schema.String(),
//			"priority": schema.Enum("high", "medium", "low"),
//		}, "path", "priority")),
//	}, "files")
//
// A schema validates decoded JSON values (maps, slices, and scalars) with
// Validate. Validation is intentionally lenient about unknown properties:
// LLMs frequently emit extra fields, and callers only depend on the fields
// the schema names.
package schema
