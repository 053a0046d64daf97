package model

import (
	"fmt"
	"slices"
	"strings"
)

// Environment is the deployment environment a client loads entities for.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvQA   Environment = "qa"
	EnvProd Environment = "prod"
)

// ParseEnvironment parses a case-insensitive environment name.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(strings.ToLower(strings.TrimSpace(s)))
	switch env {
	case EnvDev, EnvQA, EnvProd:
		return env, nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

// EntityActivationStatus is how a client should treat a loaded entity.
type EntityActivationStatus string

const (
	ActivationActive    EntityActivationStatus = "ACTIVE"
	ActivationAvailable EntityActivationStatus = "AVAILABLE"
	ActivationDisabled  EntityActivationStatus = "DISABLED"
)

// ParseActivationStatus parses a case-insensitive activation status.
// Lifecycle statuses such as IN_REVIEW are not activation statuses.
func ParseActivationStatus(s string) (EntityActivationStatus, error) {
	status := EntityActivationStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case ActivationActive, ActivationAvailable, ActivationDisabled:
		return status, nil
	}
	return "", NewError(ErrCodeBusiness, "unknown activation status %q", s)
}

// PolicyStatus is the lifecycle state recorded in policy manifests.
type PolicyStatus string

const (
	StatusInProgress       PolicyStatus = "IN_PROGRESS"
	StatusReadyForReview   PolicyStatus = "READY_FOR_REVIEW"
	StatusInReview         PolicyStatus = "IN_REVIEW"
	StatusReviewed         PolicyStatus = "REVIEWED"
	StatusReadyForQA       PolicyStatus = "READY_FOR_QA"
	StatusActiveQA         PolicyStatus = "ACTIVE_QA"
	StatusQA               PolicyStatus = "QA"
	StatusTestingCompleted PolicyStatus = "TESTING_COMPLETED"
	StatusApproved         PolicyStatus = "APPROVED"
	StatusInactive         PolicyStatus = "INACTIVE"
	StatusReadyForProd     PolicyStatus = "READY_FOR_PROD"
	StatusActive           PolicyStatus = "ACTIVE"
	StatusDisabled         PolicyStatus = "DISABLED"
	StatusArchive          PolicyStatus = "ARCHIVE"
)

// statusEnvironments lists the environments each status is visible in.
var statusEnvironments = map[PolicyStatus][]Environment{
	StatusInProgress:       {EnvDev},
	StatusReadyForReview:   {EnvDev},
	StatusInReview:         {EnvDev},
	StatusReviewed:         {EnvDev},
	StatusReadyForQA:       {EnvQA},
	StatusActiveQA:         {EnvQA},
	StatusQA:               {EnvQA},
	StatusTestingCompleted: nil,
	StatusApproved:         {EnvQA},
	StatusInactive:         {EnvQA},
	StatusReadyForProd:     {EnvProd},
	StatusActive:           {EnvProd},
	StatusDisabled:         {EnvProd},
	StatusArchive:          nil,
}

var statusAliases = map[string]PolicyStatus{
	"IN-PROGRESS": StatusInProgress,
	"ARCHIVED":    StatusArchive,
}

// ParsePolicyStatus parses a case-insensitive status name or alias.
func ParsePolicyStatus(s string) (PolicyStatus, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if alias, ok := statusAliases[key]; ok {
		return alias, nil
	}
	status := PolicyStatus(key)
	if _, ok := statusEnvironments[status]; !ok {
		return "", NewError(ErrCodeBusiness, "unknown policy status %q", s)
	}
	return status, nil
}

// Environments returns the environments the status belongs to.
func (s PolicyStatus) Environments() []Environment {
	return slices.Clone(statusEnvironments[s])
}

func (s PolicyStatus) in(env Environment) bool {
	return slices.Contains(statusEnvironments[s], env)
}

// ShouldLoad reports whether a client in env loads a policy with this
// status. Lower environments load everything a higher one loads.
func (s PolicyStatus) ShouldLoad(env Environment) bool {
	switch env {
	case EnvProd:
		return s.in(EnvProd)
	case EnvQA:
		return s.in(EnvQA) || s.ShouldLoad(EnvProd)
	case EnvDev:
		return s.in(EnvDev) || s.ShouldLoad(EnvQA)
	}
	return false
}

// ActivationStatus maps the status to an activation status for env.
func (s PolicyStatus) ActivationStatus(env Environment) EntityActivationStatus {
	switch {
	case s == StatusActive || s == StatusActiveQA:
		return ActivationActive
	case s == StatusDisabled:
		return ActivationDisabled
	case s.ShouldLoad(env):
		return ActivationAvailable
	}
	return ActivationDisabled
}
