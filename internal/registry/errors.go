package registry

import (
	"fmt"
	"strings"
)

// DuplicateError reports a migration name registered twice.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("migration %s is already registered", e.Name)
}

// UnknownDependencyError reports a depends_on reference that does not resolve
// to any registered migration.
type UnknownDependencyError struct {
	Migration  string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("migration %s depends on unknown migration %s", e.Migration, e.Dependency)
}

// CycleError reports a circular dependency. Path lists the cycle with the
// starting migration repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "circular dependency detected: " + strings.Join(e.Path, " -> ")
}
