package deps

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ResolveSpecifier reduces a version specifier to the concrete version the
// resolver commits to. Resolution is syntactic: range operators are stripped
// and the first version token is kept, without consulting the registry's list
// of published versions.
//
//	"~1.3.5"          -> "1.3.5"
//	"^1.18.3"         -> "1.18.3"
//	">=1.2.0 <2.0.0"  -> "1.2.0"
//	"1.0.0 || 2.0.0"  -> "1.0.0"
//	"^1.2"            -> "1.2.0"
//	"*", ""           -> "latest"
//
// A specifier whose token is not a version ("next", "1.x", a git URL) is
// returned trimmed but otherwise unchanged.
func ResolveSpecifier(spec string) string {
	s := strings.TrimSpace(spec)

	token := s
	if i := strings.Index(token, "||"); i >= 0 {
		token = token[:i]
	}
	token = strings.TrimLeft(token, "~^<>=!v \t")
	if i := strings.IndexAny(token, " \t,"); i >= 0 {
		token = token[:i]
	}

	switch token {
	case "", "*", "x", "X":
		return Latest
	}
	v, err := semver.NewVersion(token)
	if err != nil {
		return s
	}
	return v.String()
}

// aliasPrefix marks an npm alias specifier ("npm:string-width@^4.2.0").
const aliasPrefix = "npm:"

// Dependency is one manifest entry after specifier resolution.
type Dependency struct {
	Name      string     // Name as declared in the manifest
	Version   string     // Resolved version, or the literal specifier
	Target    PackageRef // Registry package the entry refers to
	Fetchable bool       // Target can be requested from the registry
}

// ParseDependency resolves one manifest entry. An npm alias targets the
// aliased package, so Target.Name differs from Name. Specifiers that name no
// registry version (git or tarball URLs, "file:" and "link:" paths, GitHub
// shorthands, partial versions such as "1.x") keep their literal Version and
// are not Fetchable. Dist-tags ("next", "beta") are fetchable.
func ParseDependency(name, spec string) Dependency {
	target := name
	s := strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(s, aliasPrefix); ok {
		target, s = rest, ""
		if i := strings.LastIndex(rest, "@"); i > 0 {
			target, s = rest[:i], rest[i+1:]
		}
	}

	version := ResolveSpecifier(s)
	return Dependency{
		Name:      name,
		Version:   version,
		Target:    PackageRef{Name: target, Version: version},
		Fetchable: target != "" && isRegistryVersion(version),
	}
}

// isRegistryVersion reports whether the registry can serve v: latest, an
// exact version or a dist-tag.
func isRegistryVersion(v string) bool {
	if v == Latest {
		return true
	}
	if _, err := semver.NewVersion(v); err == nil {
		return true
	}
	return isDistTag(v)
}

// isDistTag matches npm tag names: a letter followed by letters, digits,
// '.', '-' or '_'.
func isDistTag(v string) bool {
	if v == "" || !isLetter(v[0]) {
		return false
	}
	for i := 1; i < len(v); i++ {
		c := v[i]
		if !isLetter(c) && (c < '0' || c > '9') && c != '.' && c != '-' && c != '_' {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

// higherVersion returns the greater of two resolved versions. Versions that
// do not parse are compared lexically, and always lose against ones that do.
func higherVersion(a, b string) string {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		if vb.GreaterThan(va) || (vb.Equal(va) && b > a) {
			return b
		}
		return a
	case errA == nil:
		return a
	case errB == nil:
		return b
	case b > a:
		return b
	default:
		return a
	}
}
