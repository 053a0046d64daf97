// Package manifest parses the policy status files stored beside policies.
//
// Two formats exist. The sparse per-version policy-metadata.json sits in
// the version folder. The legacy metadata.json sits one directory above
// and lists the status of every major.minor version.
package manifest

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/roach88/configstore/internal/model"
)

// FileName is the legacy aggregate manifest name.
const FileName = "metadata.json"

// Sparse is the content of a policy-metadata.json file. Its status is the
// activation status itself and does not depend on the client environment.
type Sparse struct {
	Status         model.EntityActivationStatus
	CompileVersion int
	Type           string
}

type sparseJSON struct {
	Status         *string `json:"Status"`
	CompileVersion *int    `json:"CompileVersion"`
	Type           *string `json:"Type"`
}

// ParseSparse parses a policy-metadata.json file. Status is required;
// CompileVersion and Type fall back to their defaults.
func ParseSparse(content []byte) (Sparse, error) {
	var raw sparseJSON
	if err := json.Unmarshal(content, &raw); err != nil {
		return Sparse{}, model.WrapError(model.ErrCodeBusiness, err, "malformed policy metadata")
	}
	if raw.Status == nil {
		return Sparse{}, model.NewError(model.ErrCodeBusiness, "policy metadata is missing Status")
	}
	status, err := model.ParseActivationStatus(*raw.Status)
	if err != nil {
		return Sparse{}, err
	}

	out := Sparse{Status: status, CompileVersion: model.DefaultCompileVersion, Type: model.DefaultPolicyType}
	if raw.CompileVersion != nil {
		out.CompileVersion = *raw.CompileVersion
	}
	if raw.Type != nil && strings.TrimSpace(*raw.Type) != "" {
		out.Type = *raw.Type
	}
	return out, nil
}

// VersionEntry is one row of a legacy manifest.
type VersionEntry struct {
	Version string             `json:"Version"`
	Status  model.PolicyStatus `json:"Status"`
}

// Legacy is the content of a legacy metadata.json file.
type Legacy struct {
	Versions []VersionEntry
}

type legacyJSON struct {
	Versions []struct {
		Version string `json:"Version"`
		Status  string `json:"Status"`
	} `json:"Versions_Supported"`
}

// ParseLegacy parses a legacy metadata.json file.
func ParseLegacy(content []byte) (Legacy, error) {
	var raw legacyJSON
	if err := json.Unmarshal(content, &raw); err != nil {
		return Legacy{}, model.WrapError(model.ErrCodeBusiness, err, "malformed legacy policy manifest")
	}
	out := Legacy{Versions: make([]VersionEntry, 0, len(raw.Versions))}
	for _, v := range raw.Versions {
		status, err := model.ParsePolicyStatus(v.Status)
		if err != nil {
			return Legacy{}, model.WrapError(model.ErrCodeBusiness, err, "legacy manifest version %q", v.Version)
		}
		out.Versions = append(out.Versions, VersionEntry{Version: v.Version, Status: status})
	}
	return out, nil
}

// StatusOf returns the status listed for a "major.minor" version.
func (l Legacy) StatusOf(version string) (model.PolicyStatus, bool) {
	for _, v := range l.Versions {
		if v.Version == version {
			return v.Status, true
		}
	}
	return "", false
}

// LegacyKey returns the key of the legacy manifest for a policy version
// stored at locationPrefix, or false when the prefix does not end in a
// version folder named minorVersion.
func LegacyKey(locationPrefix, minorVersion string) (string, bool) {
	i := strings.LastIndex(locationPrefix, "/"+minorVersion)
	if i < 0 {
		return "", false
	}
	return locationPrefix[:i] + "/" + FileName, true
}
