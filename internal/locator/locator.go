// Package locator resolves the platform-specific sidecar executable.
//
// Sidecar binaries are shipped next to the host under a target-triple suffixed
// name, e.g. "backend-x86_64-unknown-linux-gnu" or
// "backend-x86_64-pc-windows-msvc.exe". A plain "backend" is accepted as a
// fallback so development builds can drop an unsuffixed binary in place.
package locator

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charliek/sidecarhost/internal/domain"
)

// triples maps GOOS/GOARCH to the target triple used by sidecar build tooling
var triples = map[string]string{
	"linux/amd64":   "x86_64-unknown-linux-gnu",
	"linux/arm64":   "aarch64-unknown-linux-gnu",
	"linux/386":     "i686-unknown-linux-gnu",
	"linux/arm":     "armv7-unknown-linux-gnueabihf",
	"linux/riscv64": "riscv64gc-unknown-linux-gnu",
	"darwin/amd64":  "x86_64-apple-darwin",
	"darwin/arm64":  "aarch64-apple-darwin",
	"windows/amd64": "x86_64-pc-windows-msvc",
	"windows/arm64": "aarch64-pc-windows-msvc",
	"windows/386":   "i686-pc-windows-msvc",
	"freebsd/amd64": "x86_64-unknown-freebsd",
}

// TargetTriple returns the target triple for a GOOS/GOARCH pair
func TargetTriple(goos, goarch string) (string, bool) {
	t, ok := triples[goos+"/"+goarch]
	return t, ok
}

// Locator describes how to find the sidecar binary
type Locator struct {
	// Name is the sidecar base name, or an absolute path used as-is
	Name string
	// Dirs are searched in order
	Dirs []string
	// Triple is the target triple suffix; empty disables suffixed candidates
	Triple string
	// GOOS decides the executable extension and permission check
	GOOS string
}

// New creates a locator for the running platform. The directory holding the
// running executable is searched after dirs.
func New(name string, dirs ...string) *Locator {
	triple, _ := TargetTriple(runtime.GOOS, runtime.GOARCH)

	search := make([]string, 0, len(dirs)+1)
	search = append(search, dirs...)
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		search = append(search, filepath.Dir(exe))
	}

	return &Locator{
		Name:   name,
		Dirs:   search,
		Triple: triple,
		GOOS:   runtime.GOOS,
	}
}

// Candidates returns every path Resolve will try, in order
func (l *Locator) Candidates() []string {
	if filepath.IsAbs(l.Name) {
		return []string{l.Name}
	}

	ext := ""
	if l.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(l.Name), ".exe") {
		ext = ".exe"
	}

	var candidates []string
	for _, dir := range l.Dirs {
		if dir == "" {
			continue
		}
		if l.Triple != "" {
			candidates = append(candidates, filepath.Join(dir, l.Name+"-"+l.Triple+ext))
		}
		candidates = append(candidates, filepath.Join(dir, l.Name+ext))
	}
	return candidates
}

// Resolve returns the first candidate that is an executable regular file
func (l *Locator) Resolve() (string, error) {
	if l.Name == "" {
		return "", fmt.Errorf("%w: sidecar name is empty", domain.ErrResolutionFailed)
	}

	candidates := l.Candidates()
	for _, path := range candidates {
		if l.isExecutable(path) {
			return path, nil
		}
	}

	if l.Triple == "" && !filepath.IsAbs(l.Name) {
		return "", fmt.Errorf("%w: no target triple for %s/%s and no plain %q found (tried: %v)",
			domain.ErrResolutionFailed, runtime.GOOS, runtime.GOARCH, l.Name, candidates)
	}
	return "", fmt.Errorf("%w: %q (tried: %v)", domain.ErrResolutionFailed, l.Name, candidates)
}

func (l *Locator) isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if l.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}
