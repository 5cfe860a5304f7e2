package cifail

import "fmt"

// Kind classifies a detected failure. The set is closed: scoring and
// reporting switch over it exhaustively, so adding a kind is a
// compile-time decision, not a runtime string.
type Kind int

const (
	// KindUnknown is the zero value and never valid on a Record.
	KindUnknown Kind = iota

	// KindBuildFailure is a failed compilation or packaging step.
	KindBuildFailure
	// KindDeployFailure is a failed deploy or rollout step.
	KindDeployFailure
	// KindTestFailure is a failing test.
	KindTestFailure
	// KindSecurityVulnerability is a reported vulnerability (audit, CVE scan).
	KindSecurityVulnerability
	// KindDependencyError is a dependency resolution or install failure.
	KindDependencyError
	// KindLintError is a linter violation.
	KindLintError
	// KindWarning is a compiler or tool warning.
	KindWarning
	// KindPerformanceIssue is a performance regression or budget breach.
	KindPerformanceIssue
	// KindDocumentation is a documentation problem (broken link, stale doc).
	KindDocumentation
	// KindStyleIssue is a formatting or style violation.
	KindStyleIssue
)

var kindNames = map[Kind]string{
	KindBuildFailure:          "build_failure",
	KindDeployFailure:         "deploy_failure",
	KindTestFailure:           "test_failure",
	KindSecurityVulnerability: "security_vulnerability",
	KindDependencyError:       "dependency_error",
	KindLintError:             "lint_error",
	KindWarning:               "warning",
	KindPerformanceIssue:      "performance_issue",
	KindDocumentation:         "documentation",
	KindStyleIssue:            "style_issue",
}

var kindValues = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// String returns the stable wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the defined failure kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a wire name to a Kind. Unknown names fail closed with a
// ValidationError so a new failure class can never be silently assigned
// a default severity.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindValues[s]; ok {
		return k, nil
	}
	return KindUnknown, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %d", int(k))}
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
