package downloader

import (
	"fmt"
	"regexp"
	"strings"
)

// filenameCleaner collapses anything outside [A-Za-z0-9._-] into "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NotebookFilename returns "<UserName>_<Slug>.ipynb" with both parts made
// filesystem safe.
func NotebookFilename(userName, slug string) (string, error) {
	u := cleanPart(userName)
	s := cleanPart(slug)
	if u == "" || s == "" {
		return "", fmt.Errorf("downloader: cannot name notebook for user=%q slug=%q", userName, slug)
	}
	return u + "_" + s + ".ipynb", nil
}

func cleanPart(s string) string {
	s = filenameCleaner.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.Trim(s, "._")
}
