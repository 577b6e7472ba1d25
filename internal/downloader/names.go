package downloader

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"yggharvest/pkg/models"
)

// Extension is appended to every artifact file name.
const Extension = ".torrent"

// maxNameBytes caps the encoded length of a name's base. Together with the
// extension, a collision tag and the storage temp-file affixes it stays
// under the common 255 byte NAME_MAX.
const maxNameBytes = 200

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeFilename derives an artifact file name from a title: characters
// that are invalid on common filesystems become '_', the base is cut to
// maxLen runes and maxNameBytes bytes, and the extension is appended.
func SanitizeFilename(title string, maxLen int) string {
	return sanitizeBase(title, maxLen) + Extension
}

func sanitizeBase(title string, maxLen int) string {
	name := unsafeChars.ReplaceAllString(title, "_")
	name = strings.Trim(name, " .")
	name = trimExtension(name)

	name = strings.TrimRight(truncate(name, maxLen, maxNameBytes), " .")
	if name == "" {
		name = "torrent"
	}
	return name
}

func trimExtension(name string) string {
	if n := len(name) - len(Extension); n >= 0 && strings.EqualFold(name[n:], Extension) {
		return strings.TrimRight(name[:n], " .")
	}
	return name
}

// truncate keeps at most maxRunes runes and maxBytes bytes of s, cutting on
// a rune boundary. A non-positive limit is ignored.
func truncate(s string, maxRunes, maxBytes int) string {
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		s = string([]rune(s)[:maxRunes])
	}
	if maxBytes > 0 && len(s) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// assignNames returns one file name per entry. With disambiguate set, a
// name already taken earlier in the batch gets a short hash of the entry's
// key, so the same batch always maps to the same names.
func assignNames(entries []*models.Entry, maxLen int, disambiguate bool) []string {
	names := make([]string, len(entries))
	taken := make(map[string]bool, len(entries))

	for i, e := range entries {
		base := sanitizeBase(e.Title, maxLen)
		name := base + Extension
		if disambiguate {
			for n := 1; taken[strings.ToLower(name)]; n++ {
				key := e.Key()
				if n > 1 {
					key = fmt.Sprintf("%s#%d", key, n)
				}
				name = suffixed(base, key, maxLen)
			}
		}
		taken[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// suffixed tags base with eight hex digits of the key's hash.
func suffixed(base, key string, maxLen int) string {
	tag := fmt.Sprintf("-%016x", xxhash.Sum64String(key))[:9]
	runes := 0
	if maxLen > len(tag) {
		runes = maxLen - len(tag)
	}
	return truncate(base, runes, maxNameBytes-len(tag)) + tag + Extension
}
