package repo

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
)

// AppDataDir returns an operating system specific directory to be used for
// storing application data for an application.
//
// Example results:
//  dir := AppDataDir("storyagent", false)
//   POSIX (Linux/BSD): ~/.storyagent
//   Mac OS: $HOME/Library/Application Support/Storyagent
//   Windows: %LOCALAPPDATA%\Storyagent
func AppDataDir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	// The caller really shouldn't prepend the appName with a period, but
	// if they do, handle it gracefully by trimming it.
	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]
	appNameLower := string(unicode.ToLower(rune(appName[0]))) + appName[1:]

	homeDir := os.Getenv("HOME")
	if usr, err := os.UserHomeDir(); err == nil {
		homeDir = usr
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if roaming || appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}
	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library", "Application Support", appNameUpper)
		}
	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appNameLower)
		}
	}

	// Fall back to the current directory if all else fails.
	return "."
}
