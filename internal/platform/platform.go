package platform

import (
	"strings"
)

// Arch identifies an operating system family together with a CPU architecture.
type Arch uint8

const (
	DarwinX64 Arch = iota
	DarwinArm64
	DarwinUniversal
	Win32X64
	Win32IA32
	Win32Arm64
	numArchs
)

// Count is the number of supported platform-architecture tags.
const Count = int(numArchs)

const (
	FamilyDarwin = "darwin"
	FamilyWin32  = "win32"
)

var archNames = [Count]string{
	DarwinX64:       "darwin-x64",
	DarwinArm64:     "darwin-arm64",
	DarwinUniversal: "darwin-universal",
	Win32X64:        "win32-x64",
	Win32IA32:       "win32-ia32",
	Win32Arm64:      "win32-arm64",
}

// All lists every supported tag in its canonical order.
var All = []Arch{DarwinX64, DarwinArm64, DarwinUniversal, Win32X64, Win32IA32, Win32Arm64}

// Windows lists the tags whose releases may carry a RELEASES manifest.
var Windows = []Arch{Win32X64, Win32IA32, Win32Arm64}

// synonyms expands a bare family token to its default architecture.
var synonyms = map[string]Arch{
	FamilyDarwin: DarwinX64,
	FamilyWin32:  Win32X64,
}

func (a Arch) String() string {
	if !a.Valid() {
		return "unknown"
	}
	return archNames[a]
}

func (a Arch) Valid() bool {
	return a < numArchs
}

func (a Arch) Family() string {
	family, _, _ := strings.Cut(a.String(), "-")
	return family
}

func (a Arch) IsDarwin() bool {
	return a.Family() == FamilyDarwin
}

func (a Arch) IsWindows() bool {
	return a.Family() == FamilyWin32
}

// Parse resolves an exact tag such as "win32-ia32".
func Parse(s string) (Arch, bool) {
	for _, a := range All {
		if archNames[a] == s {
			return a, true
		}
	}
	return 0, false
}

// ParseRouteToken resolves a platform path segment, expanding the bare
// "darwin" and "win32" tokens to their default architecture.
func ParseRouteToken(s string) (Arch, bool) {
	if a, ok := synonyms[s]; ok {
		return a, true
	}
	return Parse(s)
}

// Legacy returns the bare family key older cache entries used for a,
// if there is one.
func Legacy(a Arch) (string, bool) {
	for family, def := range synonyms {
		if def == a {
			return family, true
		}
	}
	return "", false
}

// Names returns the supported tags as strings in canonical order.
func Names() []string {
	ret := make([]string, len(All))
	for i, a := range All {
		ret[i] = a.String()
	}
	return ret
}

// FromGOOS maps a Go runtime os/arch pair to the matching tag.
func FromGOOS(goos, goarch string) (Arch, bool) {
	switch goos {
	case "darwin":
		switch goarch {
		case "amd64":
			return DarwinX64, true
		case "arm64":
			return DarwinArm64, true
		}
	case "windows":
		switch goarch {
		case "amd64":
			return Win32X64, true
		case "386":
			return Win32IA32, true
		case "arm64":
			return Win32Arm64, true
		}
	}
	return 0, false
}
