// Package types provides type definitions for structured data used throughout the cv-ranker system.
package types

import (
	"sort"
	"strings"
)

// Canonical CV section names.
const (
	SectionSummary           = "summary"
	SectionSkills            = "skills"
	SectionWorkExperience    = "work_experience"
	SectionProjects          = "projects"
	SectionEducation         = "education"
	SectionYearsOfExperience = "years_of_experience"
	SectionSoftSkills        = "soft_skills"
	SectionCertifications    = "certifications"
	SectionAchievements      = "achievements"
)

// Canonical JD section names.
const (
	SectionJobTitle               = "job_title"
	SectionRequiredSkills         = "required_skills"
	SectionPreferredSkills        = "preferred_skills"
	SectionRequiredQualifications = "required_qualifications"
	SectionEducationRequirements  = "education_requirements"
	SectionExperienceRequirements = "experience_requirements"
	SectionTechnicalSkills        = "technical_skills"
	SectionResponsibilities       = "responsibilities"
)

// WorkEntry is one position in a candidate's work history.
type WorkEntry struct {
	Title            string   `json:"title,omitempty" mapstructure:"title"`
	Company          string   `json:"company,omitempty" mapstructure:"company"`
	Duration         string   `json:"duration,omitempty" mapstructure:"duration"`
	Responsibilities []string `json:"responsibilities,omitempty" mapstructure:"responsibilities"`
}

// Project is a project listed on a CV.
type Project struct {
	Name        string `json:"name,omitempty" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Impact      string `json:"impact,omitempty" mapstructure:"impact"`
	Result      string `json:"result,omitempty" mapstructure:"result"`
}

// CVRecord is the structured form of one uploaded CV.
type CVRecord struct {
	ID             string            `json:"id" mapstructure:"id"`
	Email          string            `json:"email,omitempty" mapstructure:"email"`
	Name           string            `json:"name,omitempty" mapstructure:"name"`
	Sections       map[string]string `json:"sections,omitempty" mapstructure:"sections"`
	WorkExperience []WorkEntry       `json:"work_experience,omitempty" mapstructure:"work_experience"`
	Projects       []Project         `json:"projects,omitempty" mapstructure:"projects"`
	Achievements   []string          `json:"achievements,omitempty" mapstructure:"achievements"`
	Skills         []string          `json:"skills,omitempty" mapstructure:"skills"`
}

// Section returns the text of a named section, or "" when absent.
func (c *CVRecord) Section(name string) string {
	if c == nil || c.Sections == nil {
		return ""
	}
	return c.Sections[name]
}

// FullText joins all non-empty sections in a stable order.
func (c *CVRecord) FullText() string {
	if c == nil {
		return ""
	}
	return joinSections(c.Sections, CVSectionOrder)
}

// JobDescription is the structured form of a job posting.
type JobDescription struct {
	ID              string            `json:"id" mapstructure:"id"`
	Company         string            `json:"company" mapstructure:"company"`
	JobTitle        string            `json:"job_title" mapstructure:"job_title"`
	MandatorySkills []string          `json:"mandatory_skills,omitempty" mapstructure:"mandatory_skills"`
	OptionalSkills  []string          `json:"optional_skills,omitempty" mapstructure:"optional_skills"`
	Sections        map[string]string `json:"sections,omitempty" mapstructure:"sections"`
}

// Section returns the text of a named section, or "" when absent.
func (j *JobDescription) Section(name string) string {
	if j == nil || j.Sections == nil {
		return ""
	}
	return j.Sections[name]
}

// FullText joins all non-empty sections in a stable order.
func (j *JobDescription) FullText() string {
	if j == nil {
		return ""
	}
	return joinSections(j.Sections, JDSectionOrder)
}

// CVSectionOrder is the fixed order used when rendering a CV as flat text.
var CVSectionOrder = []string{
	SectionSummary,
	SectionSkills,
	SectionWorkExperience,
	SectionProjects,
	SectionAchievements,
	SectionEducation,
	SectionYearsOfExperience,
	SectionSoftSkills,
	SectionCertifications,
}

// JDSectionOrder is the fixed order used when rendering a JD as flat text.
var JDSectionOrder = []string{
	SectionJobTitle,
	SectionRequiredSkills,
	SectionPreferredSkills,
	SectionRequiredQualifications,
	SectionEducationRequirements,
	SectionExperienceRequirements,
	SectionTechnicalSkills,
	SectionSoftSkills,
	SectionCertifications,
	SectionResponsibilities,
}

func joinSections(sections map[string]string, order []string) string {
	if len(sections) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(order))
	parts := make([]string, 0, len(sections))
	for _, name := range order {
		seen[name] = true
		if text := strings.TrimSpace(sections[name]); text != "" {
			parts = append(parts, text)
		}
	}
	// Unknown sections follow in name order so output stays deterministic.
	var extra []string
	for name := range sections {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		if text := strings.TrimSpace(sections[name]); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
