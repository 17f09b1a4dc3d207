package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

const maxFragmentLen = 48

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeFragment lowercases s, replaces non-alphanumeric runs with "_",
// trims underscores and caps the result at 48 characters.
func SanitizeFragment(s string) string {
	out := nonAlnumRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	out = strings.Trim(out, "_")
	if len(out) > maxFragmentLen {
		out = strings.TrimRight(out[:maxFragmentLen], "_")
	}
	if out == "" {
		return "unknown"
	}
	return out
}

// CollectionKey is the sanitized (company, job) pair shared by a JD and its CVs.
func CollectionKey(company, job string) string {
	return SanitizeFragment(company) + "__" + SanitizeFragment(job)
}

// CVCollection returns the collection holding CV records and vectors for a job.
func CVCollection(company, job string) string {
	return "cv_" + CollectionKey(company, job)
}

// JDCollection returns the collection holding the JD record and vectors for a job.
func JDCollection(company, job string) string {
	return "jd_" + CollectionKey(company, job)
}

// JDID returns the stable identifier of the JD for (company, job).
func JDID(company, job string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(job) + "|" + strings.TrimSpace(company)))
	return hex.EncodeToString(sum[:])
}

// ErrNoEmail is returned by CVID when the email is blank.
var ErrNoEmail = errors.New("email is required to derive a candidate id")

// CVID returns the stable candidate identifier derived from an email address.
func CVID(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrNoEmail
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:]), nil
}
