package models

import (
	"fmt"
	"strings"
)

// Role gates what a user may do.
type Role string

const (
	RoleOperator   Role = "OPERATOR"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAdmin      Role = "ADMIN"
)

// Roles lists every valid role.
var Roles = []Role{RoleOperator, RoleSupervisor, RoleAdmin}

// ParseRole accepts a role name case-insensitively. "OPERADOR" is accepted as
// an alias for OPERATOR.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPERATOR", "OPERADOR":
		return RoleOperator, nil
	case "SUPERVISOR":
		return RoleSupervisor, nil
	case "ADMIN":
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("models: unknown role %q", s)
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOperator, RoleSupervisor, RoleAdmin:
		return true
	default:
		return false
	}
}

// PartStatus is the lifecycle state of a part.
type PartStatus string

const (
	PartCreated   PartStatus = "CREATED"
	PartInProcess PartStatus = "IN_PROCESS"
	PartCompleted PartStatus = "COMPLETED"
	PartScrapped  PartStatus = "SCRAPPED"
)

// ParsePartStatus accepts a status name case-insensitively.
func ParsePartStatus(s string) (PartStatus, error) {
	switch st := PartStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case PartCreated, PartInProcess, PartCompleted, PartScrapped:
		return st, nil
	default:
		return "", fmt.Errorf("models: unknown part status %q", s)
	}
}

// StationType classifies what a station does to a part.
type StationType string

const (
	StationInspection StationType = "INSPECTION"
	StationAssembly   StationType = "ASSEMBLY"
	StationTest       StationType = "TEST"
)

// ParseStationType accepts a station type case-insensitively, including the
// INSPECCION/ENSAMBLE/PRUEBA names used by older line exports.
func ParseStationType(s string) (StationType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INSPECTION", "INSPECCION":
		return StationInspection, nil
	case "ASSEMBLY", "ENSAMBLE":
		return StationAssembly, nil
	case "TEST", "PRUEBA":
		return StationTest, nil
	default:
		return "", fmt.Errorf("models: unknown station type %q", s)
	}
}

// Outcome is the result of a part's visit to a station.
type Outcome string

const (
	OutcomeOK     Outcome = "OK"
	OutcomeScrap  Outcome = "SCRAP"
	OutcomeRework Outcome = "REWORK"
)

// Outcomes lists every valid outcome.
var Outcomes = []Outcome{OutcomeOK, OutcomeScrap, OutcomeRework}

// ParseOutcome accepts an outcome case-insensitively. "RETRABAJO" is accepted
// as an alias for REWORK.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OK":
		return OutcomeOK, nil
	case "SCRAP":
		return OutcomeScrap, nil
	case "REWORK", "RETRABAJO":
		return OutcomeRework, nil
	default:
		return "", fmt.Errorf("models: unknown outcome %q", s)
	}
}
