// Package lifecycle holds the pure pieces of project lifecycle management:
// port selection, subdomain tokens and the command catalog per project type.
package lifecycle

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"unicode/utf8"

	"turion-be/pkg/process"
)

const (
	DefaultPortStart = 30000
	DefaultPortEnd   = 40000

	SubdomainPrefix = "proj-"
	subdomainLength = 6
	subdomainChars  = "abcdefghijklmnopqrstuvwxyz0123456789"

	// MaxErrorLogLength bounds diagnostic text stored on a project.
	MaxErrorLogLength = 4000
)

var ErrNoPortAvailable = errors.New("no port available")

type ProjectType string

const (
	TypeNextJS      ProjectType = "nextjs"
	TypeReact       ProjectType = "react"
	TypeReactNative ProjectType = "react-native"
)

func (t ProjectType) Valid() bool {
	switch t {
	case TypeNextJS, TypeReact, TypeReactNative:
		return true
	}
	return false
}

type PortRange struct {
	Start int
	End   int
}

// FirstFree returns the lowest port of the inclusive range not in taken.
func (r PortRange) FirstFree(taken map[int]bool) (int, error) {
	for p := r.Start; p <= r.End; p++ {
		if !taken[p] {
			return p, nil
		}
	}
	return 0, ErrNoPortAvailable
}

// NewSubdomain returns a random token such as "proj-k3x9qa". Uniqueness is
// not checked; with 36^6 values collisions are accepted as negligible.
func NewSubdomain() string {
	b := make([]byte, subdomainLength)
	max := big.NewInt(int64(len(subdomainChars)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("lifecycle: crypto/rand failed: %v", err))
		}
		b[i] = subdomainChars[n.Int64()]
	}
	return SubdomainPrefix + string(b)
}

func PreviewURL(subdomain, previewDomain string) string {
	return fmt.Sprintf("https://%s.%s", subdomain, previewDomain)
}

// ScaffoldSpec is the command that creates the initial tree of a project in
// parentDir/dirName.
func ScaffoldSpec(t ProjectType, parentDir, dirName string) (process.Spec, error) {
	spec := process.Spec{Name: "scaffold", Command: "npx", Dir: parentDir}
	switch t {
	case TypeNextJS:
		spec.Args = []string{"create-next-app@latest", dirName, "--typescript", "--tailwind", "--app", "--no-git", "--eslint", "--src-dir", "--import-alias", "@/*", "--use-npm", "--yes"}
	case TypeReact:
		spec.Args = []string{"create-react-app", dirName, "--template", "typescript"}
	case TypeReactNative:
		spec.Args = []string{"create-expo-app", dirName, "--template", "blank-typescript", "--yes"}
	default:
		return process.Spec{}, fmt.Errorf("unsupported project type %q", t)
	}
	return spec, nil
}

// DevServerSpec is the long-running command serving a project on port.
func DevServerSpec(t ProjectType, projectPath string, port int) (process.Spec, error) {
	p := strconv.Itoa(port)
	spec := process.Spec{Name: "dev-server", Dir: projectPath, Env: []string{"PORT=" + p}}
	switch t {
	case TypeNextJS:
		spec.Command = "npm"
		spec.Args = []string{"run", "dev", "--", "-p", p}
	case TypeReact:
		spec.Command = "npm"
		spec.Args = []string{"start"}
		spec.Env = append(spec.Env, "BROWSER=none")
	case TypeReactNative:
		spec.Command = "npx"
		spec.Args = []string{"expo", "start", "--web", "--port", p}
	default:
		return process.Spec{}, fmt.Errorf("unsupported project type %q", t)
	}
	return spec, nil
}

// Bound keeps the tail of s within MaxErrorLogLength bytes without splitting
// a rune.
func Bound(s string) string {
	if len(s) <= MaxErrorLogLength {
		return s
	}
	cut := len(s) - MaxErrorLogLength
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
