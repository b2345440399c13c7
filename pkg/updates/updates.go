package updates

import "fmt"

// Update is the body of a successful update check.
type Update struct {
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
	URL   string `json:"url"`
}

func (u *Update) String() string {
	return fmt.Sprintf("%s (%s)", u.Name, u.URL)
}

// ManifestFileName is the trailing path segment that selects the Windows
// RELEASES manifest instead of an update check.
const ManifestFileName = "RELEASES"

// CheckPath returns the update check path of a client.
func CheckPath(account, repository, platform, version string) string {
	return fmt.Sprintf("/%s/%s/%s/%s", account, repository, platform, version)
}

// ManifestPath returns the RELEASES manifest path of a Windows client.
func ManifestPath(account, repository, platform, version string) string {
	return CheckPath(account, repository, platform, version) + "/" + ManifestFileName
}
