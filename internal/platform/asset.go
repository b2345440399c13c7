package platform

import (
	"regexp"
	"strings"
)

var (
	darwinZipRe   = regexp.MustCompile(`(?i).*-(mac|darwin|osx).*\.zip$`)
	win32ArchRe   = regexp.MustCompile(`(?i).*-win32-(ia32|x64|arm64).*$`)
	universalRe   = regexp.MustCompile(`(?i)-universal`)
	darwinArm64Re = regexp.MustCompile(`(?i)-arm64`)
)

// Classify maps a release asset file name to the platform it was built for.
// Names it does not recognize report false and are not an error.
func Classify(fileName string) (Arch, bool) {
	if darwinZipRe.MatchString(fileName) {
		switch {
		case universalRe.MatchString(fileName):
			return DarwinUniversal, true
		case darwinArm64Re.MatchString(fileName):
			return DarwinArm64, true
		default:
			return DarwinX64, true
		}
	}

	if m := win32ArchRe.FindStringSubmatch(fileName); m != nil {
		switch strings.ToLower(m[1]) {
		case "ia32":
			return Win32IA32, true
		case "arm64":
			return Win32Arm64, true
		default:
			return Win32X64, true
		}
	}

	// a lone installer is assumed to be the x64 build unless its name hints otherwise
	if strings.HasSuffix(fileName, ".exe") && !strings.Contains(fileName, "arm") && !strings.Contains(fileName, "ia32") {
		return Win32X64, true
	}

	return 0, false
}
