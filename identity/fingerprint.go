package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultMatchThreshold is the similarity above which two addresses are
// treated as the same property
const DefaultMatchThreshold = 0.85

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"crescent":  "cres",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"square":    "sq",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"northeast": "ne",
		"northwest": "nw",
		"southeast": "se",
		"southwest": "sw",
		"apartment": "apt",
		"suite":     "ste",
		"floor":     "fl",
		"building":  "bldg",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// NormalizeAddress lowercases addr, strips punctuation and abbreviates
// street words so that "12 Oak Street" and "12 oak st." compare equal.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")

	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	return multiSpaceRegex.ReplaceAllString(strings.Join(words, " "), " ")
}

// AddressKey is a stable identifier for the property at addr
func AddressKey(addr string) string {
	hash := sha256.Sum256([]byte(NormalizeAddress(addr)))
	return hex.EncodeToString(hash[:16])
}

// Similarity scores two addresses from 0 (unrelated) to 1 (same normalised text)
func Similarity(a, b string) float64 {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	if na == nb {
		return 1
	}
	maxLen := max(len(na), len(nb))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(maxLen)
}

// Matches reports whether candidate is the address a user searched for.
// A normalised substring hit always matches.
func Matches(query, candidate string, threshold float64) bool {
	nq, nc := NormalizeAddress(query), NormalizeAddress(candidate)
	if nq == "" {
		return true
	}
	if strings.Contains(nc, nq) {
		return true
	}
	return Similarity(query, candidate) >= threshold
}
