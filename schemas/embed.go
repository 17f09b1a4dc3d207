// Package schemas embeds the JSON Schemas for CV, JD and search request documents.
package schemas

import "embed"

// Schema file names.
const (
	CVRecord      = "cv_record.schema.json"
	JDRecord      = "jd_record.schema.json"
	SearchRequest = "search_request.schema.json"
)

// Files holds every schema in this directory.
//
//go:embed *.schema.json
var Files embed.FS

// Load returns the raw bytes of a schema file.
func Load(name string) ([]byte, error) {
	return Files.ReadFile(name)
}
