package sku

import (
	"strconv"
	"strings"
	"sync"
	"unicode"
)

var staticTeamCodes = map[string]string{
	"real madrid":   "RM",
	"barcelona":     "BR",
	"ac milan":      "AC",
	"man city":      "MC",
	"man utd":       "MU",
	"spurs":         "SPS",
	"inter milan":   "INT",
	"arsenal":       "AR",
	"liverpool":     "LV",
	"chelsea":       "CL",
	"psg":           "PSG",
	"argentina":     "AF",
	"brazil":        "BZ",
	"germany":       "GR",
	"dortmund":      "DV",
	"bayern munich": "BM",
}

// Registry is the process-wide memory of team codes. Static codes are always
// reserved; fallback codes are minted on first use and then stay bound to their
// team so encoding remains deterministic.
type Registry struct {
	mu     sync.Mutex
	byTeam map[string]string
	owner  map[string]string
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset drops every minted code and keeps only the static table.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byTeam = make(map[string]string, len(staticTeamCodes))
	r.owner = make(map[string]string, len(staticTeamCodes))
	for team, code := range staticTeamCodes {
		r.byTeam[team] = code
		r.owner[code] = team
	}
}

// TeamCode returns the code for team, minting a fallback if needed.
func (r *Registry) TeamCode(team string) string {
	key := teamKey(team)

	r.mu.Lock()
	defer r.mu.Unlock()

	if code, ok := r.byTeam[key]; ok {
		return code
	}
	code := r.mint(team)
	r.byTeam[key] = code
	r.owner[code] = key
	return code
}

// Peek returns the code TeamCode would return without binding a minted one.
func (r *Registry) Peek(team string) string {
	key := teamKey(team)

	r.mu.Lock()
	defer r.mu.Unlock()

	if code, ok := r.byTeam[key]; ok {
		return code
	}
	return r.mint(team)
}

// Learn binds an existing code to team. It reports false when the code already
// belongs to another team or the team already has a different code.
func (r *Registry) Learn(team, code string) bool {
	key := teamKey(team)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byTeam[key]; ok {
		return existing == code
	}
	if owner, ok := r.owner[code]; ok && owner != key {
		return false
	}
	r.byTeam[key] = code
	r.owner[code] = key
	return true
}

// mint tries the two-letter prefix, then longer prefixes, then numbered
// three-letter codes. Caller holds r.mu.
func (r *Registry) mint(team string) string {
	letters := fallbackLetters(team)
	for n := 2; n <= len(letters); n++ {
		if _, taken := r.owner[letters[:n]]; !taken {
			return letters[:n]
		}
	}
	base := letters
	if len(base) > 3 {
		base = base[:3]
	}
	for i := 2; ; i++ {
		code := base + strconv.Itoa(i)
		if _, taken := r.owner[code]; !taken {
			return code
		}
	}
}

func teamKey(team string) string {
	return strings.ToLower(strings.Join(strings.Fields(team), " "))
}

// fallbackLetters keeps the letters and digits of name, uppercased, padded with
// X up to two characters.
func fallbackLetters(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteString(strings.ToUpper(string(r)))
		}
	}
	out := b.String()
	for len(out) < 2 {
		out += "X"
	}
	return out
}
