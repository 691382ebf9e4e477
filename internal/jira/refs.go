package jira

import (
	"strings"
)

const browsePath = "/browse/"

// IsBrowseURL reports whether ref is an issue link (/browse/PROJ-123). When
// jiraURL is set the link must also point at that instance.
func IsBrowseURL(ref, jiraURL string) bool {
	if !strings.Contains(ref, browsePath) {
		return false
	}
	if jiraURL != "" {
		jiraURL = strings.TrimSuffix(jiraURL, "/")
		if !strings.HasPrefix(ref, jiraURL+"/") {
			return false
		}
	}
	return KeyFromBrowseURL(ref) != ""
}

// KeyFromBrowseURL extracts the issue key from an issue link, dropping any
// trailing path, query or fragment.
// "https://company.atlassian.net/browse/PROJ-123?focus=1" returns "PROJ-123".
func KeyFromBrowseURL(ref string) string {
	idx := strings.LastIndex(ref, browsePath)
	if idx == -1 {
		return ""
	}
	key := ref[idx+len(browsePath):]
	if end := strings.IndexAny(key, "/?#"); end >= 0 {
		key = key[:end]
	}
	return key
}

// BrowseURL builds the human-readable link for an issue. Self is
// "https://company.atlassian.net/rest/api/3/issue/10001"; the result is
// "https://company.atlassian.net/browse/PROJ-123".
func BrowseURL(ji *Issue) string {
	if ji == nil || ji.Self == "" || ji.Key == "" {
		return ""
	}
	if idx := strings.Index(ji.Self, "/rest/api/"); idx > 0 {
		return ji.Self[:idx] + browsePath + ji.Key
	}
	return ""
}

// unwrapSlackLink strips Slack's <url> and <url|label> link markup.
func unwrapSlackLink(s string) string {
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = s[1 : len(s)-1]
		if bar := strings.Index(s, "|"); bar >= 0 {
			s = s[:bar]
		}
	}
	return s
}
