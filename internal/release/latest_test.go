package release

import (
	"encoding/json"
	"testing"

	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/stretchr/testify/require"
)

func TestLatestByPlatformJSON(t *testing.T) {
	var latest LatestByPlatform
	latest.Set(platform.DarwinArm64, &Latest{Name: "n", Version: "1.0.0", URL: "app-arm64-mac.zip", Notes: "notes"})
	latest.Set(platform.Win32X64, &Latest{Version: "1.0.0", URL: "app.exe", Releases: "HASH pkg.nupkg 1"})

	data, err := json.Marshal(&latest)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"darwin-arm64": {"name": "n", "version": "1.0.0", "url": "app-arm64-mac.zip", "notes": "notes"},
		"win32-x64": {"version": "1.0.0", "url": "app.exe", "RELEASES": "HASH pkg.nupkg 1"}
	}`, string(data))

	var decoded LatestByPlatform
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, latest, decoded)
}

func TestLatestByPlatformEmptyEntry(t *testing.T) {
	data, err := json.Marshal(&LatestByPlatform{})
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))

	var decoded LatestByPlatform
	require.NoError(t, json.Unmarshal([]byte(`{"linux": {"version": "1.0.0"}}`), &decoded))
	require.True(t, decoded.Empty())
}

func TestLatestByPlatformLegacyKeys(t *testing.T) {
	var decoded LatestByPlatform
	require.NoError(t, json.Unmarshal([]byte(`{
		"darwin": {"name": "Legacy Release", "version": "1.0.0", "url": "app-mac-legacy.zip"},
		"win32": {"name": "Legacy Release", "version": "1.0.0", "url": "app-win32-legacy.exe"}
	}`), &decoded))
	require.Equal(t, "app-mac-legacy.zip", decoded.Get(platform.DarwinX64).URL)
	require.Equal(t, "app-win32-legacy.exe", decoded.Get(platform.Win32X64).URL)
	require.Nil(t, decoded.Get(platform.DarwinArm64))

	require.NoError(t, json.Unmarshal([]byte(`{
		"darwin": {"version": "1.0.0", "url": "old.zip"},
		"darwin-x64": {"version": "2.0.0", "url": "new.zip"}
	}`), &decoded))
	require.Equal(t, "new.zip", decoded.Get(platform.DarwinX64).URL)
	require.Nil(t, decoded.Get(platform.Win32X64))
}

func TestPreferUniversal(t *testing.T) {
	specific := &Latest{Version: "v1.0.0", URL: "app-mac.zip"}
	newerUniversal := &Latest{Version: "v2.0.0", URL: "app-universal-mac.zip"}
	sameUniversal := &Latest{Version: "1.0.0", URL: "app-universal-mac.zip"}

	require.Equal(t, newerUniversal, PreferUniversal(specific, newerUniversal))
	require.Equal(t, specific, PreferUniversal(specific, sameUniversal))
	require.Equal(t, specific, PreferUniversal(specific, nil))
	require.Equal(t, sameUniversal, PreferUniversal(nil, sameUniversal))
	require.Nil(t, PreferUniversal(nil, nil))
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "name", (&Latest{Name: "name", Version: "1.0.0"}).DisplayName())
	require.Equal(t, "1.0.0", (&Latest{Version: "1.0.0"}).DisplayName())
}
