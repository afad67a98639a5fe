// Package testutil provides helpers that enforce package boundaries across
// the repository from within ordinary tests.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// AssertNoTransitiveDependency runs `go list -deps` on pattern and fails if
// any dependency satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, out, err := transitiveDependencyViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	failIfViolations(t, "forbidden transitive dependency", reason, viols)
}

// AssertNoDirectImports parses the non-test .go files in dir and fails if
// any import satisfies forbidden. Subdirectories are not scanned.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "forbidden direct imports", reason, viols)
}

// AssertOnlyImportedBy loads every package matching pattern (tests included)
// and fails when a package outside allowed imports target or one of its
// subpackages. Packages below target itself are exempt.
func AssertOnlyImportedBy(t testing.TB, pattern, target string, allowed ...string) {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if len(pkgs) == 0 {
		t.Fatalf("no packages matched %s", pattern)
	}
	imports := make(map[string][]string, len(pkgs))
	for _, pkg := range pkgs {
		for ip := range pkg.Imports {
			imports[pkg.PkgPath] = append(imports[pkg.PkgPath], ip)
		}
	}
	failIfViolations(t, "forbidden import of "+target, "only "+strings.Join(allowed, ", ")+" may import it",
		importerViolations(imports, target, allowed))
}

// InternalImportForbidden matches import paths containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// UnderPrefix returns a predicate matching prefix and its subpackages.
func UnderPrefix(prefix string) func(string) bool {
	return func(path string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

var goListDeps = func(pattern string) ([]byte, error) {
	cmd := exec.Command("go", "list", "-deps", pattern)
	return cmd.CombinedOutput()
}

func transitiveDependencyViolations(pattern string, forbidden func(path string) bool) ([]string, []byte, error) {
	out, err := goListDeps(pattern)
	if err != nil {
		return nil, out, err
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	return viols, out, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

// importerViolations maps package path -> imports and reports every edge
// into target from outside allowed.
func importerViolations(imports map[string][]string, target string, allowed []string) []string {
	inTarget := UnderPrefix(target)
	seen := make(map[string]struct{})
	for pkg, ips := range imports {
		// test variants are reported as "pkg [pkg.test]"
		base, _, _ := strings.Cut(pkg, " ")
		base = strings.TrimSuffix(base, "_test")
		if inTarget(base) || isAllowed(base, allowed) {
			continue
		}
		for _, ip := range ips {
			if inTarget(ip) {
				seen[base+": "+ip] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func isAllowed(pkg string, allowed []string) bool {
	for _, a := range allowed {
		if UnderPrefix(a)(pkg) {
			return true
		}
	}
	return false
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s detected (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
