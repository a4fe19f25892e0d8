package database

import (
	"strings"
)

// ConstructDatabaseURL joins a server URL and a database name into a DSN.
// An empty name returns baseURL untouched. Query parameters on the base URL
// are preserved and sslmode=disable is appended when no sslmode is given.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	base, query, _ := strings.Cut(strings.TrimRight(baseURL, "/"), "?")
	base = strings.TrimRight(base, "/")

	params := []string{}
	if query != "" {
		params = append(params, query)
	}
	if !strings.Contains(query, "sslmode=") {
		params = append(params, "sslmode=disable")
	}

	return base + "/" + databaseName + "?" + strings.Join(params, "&")
}
