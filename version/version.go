package version

import "fmt"

const (
	// Major version component of the current release.
	Major = 0

	// Minor version component of the current release.
	Minor = 1

	// Patch version component of the current release.
	Patch = 0
)

// String returns the semantic version string for this release.
func String() string {
	return fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}

// UserAgent returns the user agent string to use for remote API calls.
func UserAgent() string {
	return fmt.Sprintf("/storyagent:%s/", String())
}
