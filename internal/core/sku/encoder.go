// Package sku builds variant SKUs from jersey identity and variant attributes.
package sku

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

var kitCodes = map[string]string{
	"home":     "H",
	"away":     "A",
	"third":    "3",
	"training": "T",
	"retro":    "R",
}

var sizeCodes = map[string]string{
	"XS":   "XS",
	"S":    "S",
	"M":    "1",
	"L":    "2",
	"XL":   "3",
	"XXL":  "4",
	"XXXL": "5",
}

var (
	seasonSpanRe = regexp.MustCompile(`^\D*(\d{4})\s*[-/]\s*\d{2}\D*$`)
	seasonTailRe = regexp.MustCompile(`(\d{2})$`)
	seasonYearRe = regexp.MustCompile(`\d{4}`)
)

// Identity is the part of a jersey that feeds into its SKUs.
type Identity struct {
	Team   string
	Season string
	Type   string
}

type Encoder struct {
	registry *Registry
}

func NewEncoder(registry *Registry) *Encoder {
	return &Encoder{registry: registry}
}

// Encode concatenates team, season, kit, sleeve and size codes. Only the sleeve
// can make it fail.
func (e *Encoder) Encode(id Identity, size, sleeve string) (string, error) {
	sleeveCode, err := SleeveCode(sleeve)
	if err != nil {
		return "", err
	}
	return e.registry.TeamCode(id.Team) + tail(id, size, sleeveCode), nil
}

// Preview is Encode without reserving a fallback team code, for showing a SKU
// before anything is created.
func (e *Encoder) Preview(id Identity, size, sleeve string) (string, error) {
	sleeveCode, err := SleeveCode(sleeve)
	if err != nil {
		return "", err
	}
	return e.registry.Peek(id.Team) + tail(id, size, sleeveCode), nil
}

// Seed relearns the team code embedded in an existing SKU. Variants whose SKU
// does not end with the expected suffix are ignored.
func (e *Encoder) Seed(s domain.SkuSeed) bool {
	sleeveCode, err := SleeveCode(s.Sleeve)
	if err != nil {
		return false
	}
	suffix := tail(Identity{Season: s.Season, Type: s.Type}, s.Size, sleeveCode)
	prefix, ok := strings.CutSuffix(s.SKU, suffix)
	if !ok || prefix == "" {
		return false
	}
	return e.registry.Learn(s.TeamName, prefix)
}

func tail(id Identity, size, sleeveCode string) string {
	return SeasonCode(id.Season) + KitCode(id.Type) + sleeveCode + SizeCode(size)
}

// SeasonCode takes the starting year of a YYYY-YY span like "2024-25", else two
// trailing digits, else the last two digits of any four-digit year, else "XX".
func SeasonCode(season string) string {
	season = strings.TrimSpace(season)
	if m := seasonSpanRe.FindStringSubmatch(season); m != nil {
		return m[1][len(m[1])-2:]
	}
	if m := seasonTailRe.FindStringSubmatch(season); m != nil {
		return m[1]
	}
	if y := seasonYearRe.FindString(season); y != "" {
		return y[2:]
	}
	return "XX"
}

func KitCode(kit string) string {
	kit = strings.TrimSpace(kit)
	if code, ok := kitCodes[strings.ToLower(kit)]; ok {
		return code
	}
	if kit == "" {
		return "X"
	}
	return strings.ToUpper(string([]rune(kit)[0]))
}

// NormalizeSleeve maps H/F and Half/Full, in any case, to the stored form.
func NormalizeSleeve(sleeve string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(sleeve)) {
	case "h", "half":
		return domain.SleeveHalf, nil
	case "f", "full":
		return domain.SleeveFull, nil
	}
	return "", fmt.Errorf("%w: sleeve %q must be Half or Full", domain.ErrInvalidInput, sleeve)
}

func SleeveCode(sleeve string) (string, error) {
	return NormalizeSleeve(sleeve)
}

// SizeCode maps known size labels; anything else passes through unchanged.
func SizeCode(size string) string {
	size = strings.TrimSpace(size)
	if code, ok := sizeCodes[strings.ToUpper(size)]; ok {
		return code
	}
	return size
}
