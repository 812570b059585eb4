package arch

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Architecture is an image architecture as named by the lxc download template.
type Architecture string

const (
	AMD64   Architecture = "amd64"
	I386    Architecture = "i386"
	ARM64   Architecture = "arm64"
	ARMHF   Architecture = "armhf"
	PPC64EL Architecture = "ppc64el"
	S390X   Architecture = "s390x"
)

// Supported returns the full list of supported architectures.
func Supported() []Architecture {
	return []Architecture{
		AMD64,
		I386,
		ARM64,
		ARMHF,
		PPC64EL,
		S390X,
	}
}

// IsValid reports whether a matches a supported architecture value.
func (a Architecture) IsValid() bool {
	switch a {
	case AMD64, I386, ARM64, ARMHF, PPC64EL, S390X:
		return true
	default:
		return false
	}
}

// String returns the architecture as string.
func (a Architecture) String() string {
	return string(a)
}

// Parse returns the canonical Architecture for the provided string or an error if unsupported.
func Parse(value string) (Architecture, error) {
	if arch := Normalize(value); arch != "" {
		return arch, nil
	}
	return "", fmt.Errorf("unsupported architecture %q (supported: %s)", value, strings.Join(supportedStrings(), ", "))
}

// Host returns the architecture of the running binary, falling back to amd64.
func Host() Architecture {
	if arch := Normalize(runtime.GOARCH); arch != "" {
		return arch
	}
	return AMD64
}

// Normalize maps kernel, qemu and Go names onto the download template's
// naming. Returns "" when the string cannot be normalized.
func Normalize(value string) Architecture {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case string(AMD64), "x86_64", "x86-64":
		return AMD64
	case string(I386), "x86", "i486", "i586", "i686", "386":
		return I386
	case string(ARM64), "aarch64":
		return ARM64
	case string(ARMHF), "arm", "armv7", "armv7l":
		return ARMHF
	case string(PPC64EL), "ppc64le", "powerpc64le":
		return PPC64EL
	case string(S390X):
		return S390X
	default:
		return ""
	}
}

func supportedStrings() []string {
	all := Supported()
	out := make([]string, 0, len(all))
	for _, a := range all {
		out = append(out, a.String())
	}
	sort.Strings(out)
	return out
}
