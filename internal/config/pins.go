package config

import (
	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/internal/release"
)

var ReleasePins = release.Pins{
	{
		// Electron Fiddle builds before v0.35.1 cannot update past it on macOS.
		Account:    "electron",
		Repository: "fiddle",
		Platforms:  []platform.Arch{platform.DarwinX64, platform.DarwinArm64},
		Before:     "v0.35.1",
		Tag:        "v0.35.1",
	},
}
