package ingest

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MinCountryConfidence is the minimum aggregate score (0.0-1.0 scale) for a
// heuristic detection to count.
const MinCountryConfidence = 0.3

// CountryPattern is one immutable detection entry: an identifier-format regex
// plus keywords (country name, capital, document type), each with a weight.
type CountryPattern struct {
	Code          string
	Nombre        string
	IDRegex       *regexp.Regexp
	Keywords      []string
	RegexWeight   float64
	KeywordWeight float64
}

// DefaultCountryPatterns returns the built-in detection table. Injected at
// construction so the resolver carries no mutable process-wide state.
func DefaultCountryPatterns() []CountryPattern {
	return []CountryPattern{
		{
			Code:          "CHL",
			Nombre:        "Chile",
			IDRegex:       regexp.MustCompile(`\d{1,2}\.\d{3}\.\d{3}-[0-9kK]`),
			Keywords:      []string{"CHILE", "SANTIAGO", "RUT", "CLP", "CHILENA"},
			RegexWeight:   0.7,
			KeywordWeight: 0.15,
		},
		{
			Code:          "COL",
			Nombre:        "Colombia",
			IDRegex:       regexp.MustCompile(`\d{3}\.\d{3}\.\d{3}-\d`),
			Keywords:      []string{"COLOMBIA", "BOGOTA", "NIT", "COP"},
			RegexWeight:   0.7,
			KeywordWeight: 0.15,
		},
		{
			Code:          "PER",
			Nombre:        "Peru",
			IDRegex:       regexp.MustCompile(`\b2\d{10}\b`),
			Keywords:      []string{"PERU", "LIMA", "RUC", "PEN", "SOLES"},
			RegexWeight:   0.7,
			KeywordWeight: 0.15,
		},
	}
}

// CountryResolver resolves a country reference per row: explicit country
// column first, scored heuristics second, get-or-create on recognized codes.
// Resolved codes are cached; country records are immutable once referenced.
type CountryResolver struct {
	store    Store
	patterns []CountryPattern
	cache    *gocache.Cache
}

func NewCountryResolver(store Store, patterns []CountryPattern) *CountryResolver {
	return &CountryResolver{
		store:    store,
		patterns: patterns,
		cache:    gocache.New(30*time.Minute, time.Hour),
	}
}

// Resolve returns the explicitly declared country (if any) and the
// heuristically detected one. Either may be nil; both nil means the row gave
// no usable signal.
func (cr *CountryResolver) Resolve(ctx context.Context, row Row) (explicit, detectado *Pais, err error) {
	if code := explicitCountryCode(row); code != "" {
		explicit, err = cr.getOrCreate(ctx, code)
		if err != nil {
			return nil, nil, err
		}
	}
	if code, score := cr.Detect(row); code != "" && score >= MinCountryConfidence {
		detectado, err = cr.getOrCreate(ctx, code)
		if err != nil {
			return explicit, nil, err
		}
	}
	return explicit, detectado, nil
}

// Detect scores every pattern against the row's concatenated content and
// returns the winning code with its score, or ("", 0.0) when nothing matched.
// Ties break deterministically toward the alphabetically smallest code
// (policy choice, not inherited behavior).
func (cr *CountryResolver) Detect(row Row) (string, float64) {
	raw, upper := rowBlob(row)
	if raw == "" {
		return "", 0.0
	}

	bestCode := ""
	bestScore := 0.0
	codes := make([]string, 0, len(cr.patterns))
	scores := make(map[string]float64, len(cr.patterns))

	for _, p := range cr.patterns {
		score := 0.0
		if p.IDRegex != nil && p.IDRegex.MatchString(raw) {
			score += p.RegexWeight
		}
		for _, kw := range p.Keywords {
			if strings.Contains(upper, kw) {
				score += p.KeywordWeight
			}
		}
		if score > 1.0 {
			score = 1.0
		}
		codes = append(codes, p.Code)
		scores[p.Code] = score
	}

	sort.Strings(codes)
	for _, code := range codes {
		if scores[code] > bestScore {
			bestScore = scores[code]
			bestCode = code
		}
	}
	if bestScore < MinCountryConfidence {
		return "", 0.0
	}
	return bestCode, bestScore
}

func (cr *CountryResolver) getOrCreate(ctx context.Context, code string) (*Pais, error) {
	code = strings.ToUpper(code)
	if cached, ok := cr.cache.Get(code); ok {
		return cached.(*Pais), nil
	}
	pais, err := cr.store.GetOrCreatePais(ctx, code)
	if err != nil {
		return nil, err
	}
	cr.cache.Set(code, pais, gocache.DefaultExpiration)
	return pais, nil
}

// explicitCountryCode scans the row's keys case-insensitively for one
// containing "pais"/"country" and returns its value when it looks like a
// code: alphabetic, at least 2 characters.
func explicitCountryCode(row Row) string {
	for key, val := range row {
		lk := strings.ToLower(key)
		if !strings.Contains(lk, "pais") && !strings.Contains(lk, "country") {
			continue
		}
		v := strings.TrimSpace(val)
		if len(v) >= 2 && isAlphabetic(v) {
			return v
		}
	}
	return ""
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// rowBlob concatenates all non-blank row values into one text blob, returned
// raw-cased (for regex matching) and uppercased (for keyword matching).
func rowBlob(row Row) (string, string) {
	var sb strings.Builder
	for _, v := range row {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(v)
	}
	raw := sb.String()
	return raw, strings.ToUpper(raw)
}
