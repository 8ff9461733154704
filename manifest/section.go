package manifest

import "fmt"

// Kind is the dependency section kind.
type Kind int

const (
	KindNormal Kind = iota
	KindDev
	KindBuild
)

func (k Kind) String() string {
	switch k {
	case KindDev:
		return "dev-dependencies"
	case KindBuild:
		return "build-dependencies"
	default:
		return "dependencies"
	}
}

// ParseKind maps a section table name to its kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "dependencies":
		return KindNormal, true
	case "dev-dependencies":
		return KindDev, true
	case "build-dependencies":
		return KindBuild, true
	default:
		return KindNormal, false
	}
}

// Section identifies one dependency table: its kind, and the target cfg
// expression for `[target.<cfg>.<kind>]` tables (empty for unconditional
// sections).
type Section struct {
	Kind   Kind
	Target string
}

// TablePath returns the document path of the section's table.
func (s Section) TablePath() []string {
	if s.Target == "" {
		return []string{s.Kind.String()}
	}
	return []string{"target", s.Target, s.Kind.String()}
}

func (s Section) String() string {
	if s.Target == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s for target `%s`", s.Kind.String(), s.Target)
}

// sectionFromPath recognizes dependency tables, both the plain and the
// target-scoped forms.
func sectionFromPath(path []string) (Section, bool) {
	switch len(path) {
	case 1:
		if k, ok := ParseKind(path[0]); ok {
			return Section{Kind: k}, true
		}
	case 3:
		if path[0] != "target" {
			return Section{}, false
		}
		if k, ok := ParseKind(path[2]); ok {
			return Section{Kind: k, Target: path[1]}, true
		}
	}
	return Section{}, false
}
