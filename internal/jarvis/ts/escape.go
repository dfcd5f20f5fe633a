package ts

import "strings"

// ServerQuery escaping. The protocol is line oriented, so every value sent
// or received on the wire substitutes whitespace and control characters.

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`/`, `\/`,
	" ", `\s`,
	"|", `\p`,
	"\a", `\a`,
	"\b", `\b`,
	"\f", `\f`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\v", `\v`,
)

var unescaper = strings.NewReplacer(
	`\\`, `\`,
	`\/`, `/`,
	`\s`, " ",
	`\p`, "|",
	`\a`, "\a",
	`\b`, "\b",
	`\f`, "\f",
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\v`, "\v",
)

// Escape encodes a value for use in a ServerQuery command argument.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape decodes a value from a ServerQuery response.
func Unescape(s string) string {
	return unescaper.Replace(s)
}

// parseLine decodes one "key=value key=value" response line into a map.
// Flag keys without a value map to the empty string.
func parseLine(line string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.Split(line, " ") {
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, "=")
		if !found {
			out[key] = ""
			continue
		}
		out[key] = Unescape(value)
	}
	return out
}

// parseEntries decodes a pipe-separated list response into per-entry maps.
func parseEntries(line string) []map[string]string {
	parts := strings.Split(line, "|")
	entries := make([]map[string]string, 0, len(parts))
	for _, part := range parts {
		entries = append(entries, parseLine(part))
	}
	return entries
}
