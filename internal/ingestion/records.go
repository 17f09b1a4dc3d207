package ingestion

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/cv-ranker/internal/store"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/mitchellh/mapstructure"
)

// Record kinds used in MalformedRecord errors.
const (
	KindCV = "cv"
	KindJD = "jd"
)

// Fields decoded into typed struct members rather than kept as free sections.
var (
	cvStructFields = map[string]bool{
		"id": true, "email": true, "name": true, "sections": true,
		"work_experience": true, "projects": true, "achievements": true, "skills": true,
	}
	jdStructFields = map[string]bool{
		"id": true, "company": true, "job_title": true, "job": true,
		"mandatory_skills": true, "optional_skills": true, "sections": true,
	}
	// Top-level keys that are metadata, never section text.
	metadataFields = map[string]bool{
		"phone": true, "location": true, "linkedin": true, "github": true,
		"created_at": true, "updated_at": true, "file_name": true, "source": true,
	}
)

// ParseCV decodes a JSON CV document.
func ParseCV(data []byte) (*types.CVRecord, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &types.MalformedRecordError{Kind: KindCV, ID: "(unparsed)", Reason: err.Error()}
	}
	return DecodeCV(doc)
}

// ParseJD decodes a JSON JD document.
func ParseJD(data []byte) (*types.JobDescription, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &types.MalformedRecordError{Kind: KindJD, ID: "(unparsed)", Reason: err.Error()}
	}
	return DecodeJD(doc)
}

// DecodeCV converts a loose CV document into a CVRecord. Structured lists
// are rendered into sections when the document does not carry them, and the
// candidate id is derived from the email when absent.
func DecodeCV(doc map[string]any) (*types.CVRecord, error) {
	var cv types.CVRecord
	if err := weakDecode(doc, &cv); err != nil {
		return nil, &types.MalformedRecordError{Kind: KindCV, ID: idOf(doc), Reason: err.Error()}
	}

	sections := make(map[string]string)
	for name, text := range cv.Sections {
		if text = StripHTML(text); text != "" {
			sections[strings.ToLower(name)] = text
		}
	}
	for key, value := range doc {
		if cvStructFields[key] || metadataFields[key] {
			continue
		}
		if _, ok := sections[key]; ok {
			continue
		}
		if text := StripHTML(flatten(value)); text != "" {
			sections[key] = text
		}
	}
	setIfMissing(sections, types.SectionWorkExperience, renderWork(cv.WorkExperience))
	setIfMissing(sections, types.SectionProjects, renderProjects(cv.Projects))
	setIfMissing(sections, types.SectionAchievements, strings.Join(cleanList(cv.Achievements), "\n"))
	setIfMissing(sections, types.SectionSkills, strings.Join(cleanList(cv.Skills), "\n"))
	cv.Sections = sections

	if strings.TrimSpace(cv.ID) == "" {
		id, err := store.CVID(cv.Email)
		if err != nil {
			id = uuid.NewString()
		}
		cv.ID = id
	}

	if err := ValidateCV(&cv); err != nil {
		return nil, err
	}
	return &cv, nil
}

// DecodeJD converts a loose JD document into a JobDescription.
func DecodeJD(doc map[string]any) (*types.JobDescription, error) {
	var jd types.JobDescription
	if err := weakDecode(doc, &jd); err != nil {
		return nil, &types.MalformedRecordError{Kind: KindJD, ID: idOf(doc), Reason: err.Error()}
	}
	if jd.JobTitle == "" {
		if job, ok := doc["job"].(string); ok {
			jd.JobTitle = job
		}
	}

	sections := make(map[string]string)
	for name, text := range jd.Sections {
		if text = StripHTML(text); text != "" {
			sections[strings.ToLower(name)] = text
		}
	}
	for key, value := range doc {
		if jdStructFields[key] || metadataFields[key] {
			continue
		}
		if _, ok := sections[key]; ok {
			continue
		}
		if text := StripHTML(flatten(value)); text != "" {
			sections[key] = text
		}
	}
	setIfMissing(sections, types.SectionJobTitle, jd.JobTitle)
	jd.Sections = sections
	jd.MandatorySkills = cleanList(jd.MandatorySkills)
	jd.OptionalSkills = cleanList(jd.OptionalSkills)

	if strings.TrimSpace(jd.ID) == "" && jd.Company != "" && jd.JobTitle != "" {
		jd.ID = store.JDID(jd.Company, jd.JobTitle)
	}

	if err := ValidateJD(&jd); err != nil {
		return nil, err
	}
	return &jd, nil
}

// ValidateCV checks the fields required for ranking a CV.
func ValidateCV(cv *types.CVRecord) error {
	if strings.TrimSpace(cv.ID) == "" {
		return &types.MalformedRecordError{Kind: KindCV, ID: "(none)", Field: "id", Reason: "missing candidate identifier"}
	}
	if !hasText(cv.Sections) {
		return &types.MalformedRecordError{Kind: KindCV, ID: cv.ID, Field: "sections", Reason: "no section text"}
	}
	if !hasRankableText(cv.Sections, types.CVSectionOrder) {
		return &types.MalformedRecordError{Kind: KindCV, ID: cv.ID, Field: "sections", Reason: "no text in a rankable section"}
	}
	return nil
}

// ValidateJD checks the fields required for ranking against a JD.
func ValidateJD(jd *types.JobDescription) error {
	id := jd.ID
	if id == "" {
		id = "(none)"
	}
	if !hasText(jd.Sections) {
		return &types.MalformedRecordError{Kind: KindJD, ID: id, Field: "sections", Reason: "no section text"}
	}
	if !hasRankableText(jd.Sections, types.JDSectionOrder) {
		return &types.MalformedRecordError{Kind: KindJD, ID: id, Field: "sections", Reason: "no text in a rankable section"}
	}
	return nil
}

func weakDecode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           output,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(input)
}

func renderWork(entries []types.WorkEntry) string {
	var lines []string
	for _, e := range entries {
		header := strings.TrimSpace(strings.Join(nonEmpty(e.Title, e.Company, e.Duration), " | "))
		if header != "" {
			lines = append(lines, header)
		}
		lines = append(lines, cleanList(e.Responsibilities)...)
	}
	return strings.Join(lines, "\n")
}

func renderProjects(projects []types.Project) string {
	var lines []string
	for _, p := range projects {
		if line := strings.Join(nonEmpty(p.Name, p.Description, p.Impact, p.Result), ": "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// flatten renders a loose JSON value as text, one list item per line and
// object fields in key order.
func flatten(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		var lines []string
		for _, item := range v {
			if s := flatten(item); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			if s := flatten(v[k]); s != "" {
				parts = append(parts, strings.ReplaceAll(s, "\n", "; "))
			}
		}
		return strings.Join(parts, " | ")
	case bool:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func setIfMissing(sections map[string]string, name, text string) {
	if _, ok := sections[name]; ok {
		return
	}
	if text = CleanText(text); text != "" {
		sections[name] = text
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func nonEmpty(values ...string) []string {
	return cleanList(values)
}

func hasText(sections map[string]string) bool {
	for _, text := range sections {
		if strings.TrimSpace(text) != "" {
			return true
		}
	}
	return false
}

// hasRankableText reports whether any section in order holds text that
// would be embedded.
func hasRankableText(sections map[string]string, order []string) bool {
	for _, name := range order {
		if len(SplitItems(sections[name])) > 0 {
			return true
		}
	}
	return false
}

func idOf(doc map[string]any) string {
	if id, ok := doc["id"].(string); ok && id != "" {
		return id
	}
	if email, ok := doc["email"].(string); ok && email != "" {
		return email
	}
	return "(unknown)"
}
