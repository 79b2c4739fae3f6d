package ranking

import "strings"

// relatedTechnologies lists pairs that share an ecosystem. The table is
// symmetric once loaded into relatedSet.
var relatedTechnologies = map[string][]string{
	"javascript": {"react", "node", "typescript", "vue", "angular", "nextjs", "express", "svelte"},
	"typescript": {"react", "node", "angular", "nextjs", "nestjs"},
	"react":      {"nextjs", "redux", "react-native"},
	"node":       {"express", "nestjs", "deno"},
	"python":     {"django", "flask", "fastapi", "pandas", "numpy", "pytorch", "tensorflow"},
	"go":         {"gin", "echo", "grpc"},
	"java":       {"spring", "kotlin"},
	"ruby":       {"rails"},
	"php":        {"laravel"},
	"sql":        {"postgresql", "mysql", "sqlite"},
	"postgresql": {"mysql"},
	"docker":     {"kubernetes"},
	"kubernetes": {"helm"},
	"css":        {"tailwind", "sass", "html"},
}

var relatedSet = func() map[[2]string]bool {
	m := make(map[[2]string]bool)
	for a, bs := range relatedTechnologies {
		for _, b := range bs {
			m[[2]string{a, b}] = true
			m[[2]string{b, a}] = true
		}
	}
	return m
}()

// minPartialLen keeps short names like "go" from matching inside "django".
const minPartialLen = 3

// TechOverlap scores how well two technology lists match, in [0, 1]. Exact
// matches count 1, substring matches 0.5 and related technologies 0.3, over
// the size of the larger list. The raw ratio is then stepped so that low
// overlaps spread apart.
func TechOverlap(a, b []string) float64 {
	as, bs := techSet(a), techSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}

	exact := 0
	for t := range as {
		if bs[t] {
			exact++
		}
	}

	var partial, related int
	for x := range as {
		if bs[x] {
			continue
		}
		for y := range bs {
			if as[y] {
				continue
			}
			switch {
			case partialMatch(x, y):
				partial++
			case relatedSet[[2]string{x, y}]:
				related++
			}
		}
	}

	raw := (float64(exact) + 0.5*float64(partial) + 0.3*float64(related)) / float64(max(len(as), len(bs)))
	return stepOverlap(min(raw, 1))
}

// MatchedTechnologies returns the technologies of b that appear in a, in b's order.
func MatchedTechnologies(a, b []string) []string {
	as := techSet(a)
	var out []string
	for _, t := range b {
		t = strings.ToLower(strings.TrimSpace(t))
		if as[t] {
			out = append(out, t)
			delete(as, t)
		}
	}
	return out
}

func stepOverlap(raw float64) float64 {
	switch {
	case raw >= 0.8:
		return 1.0
	case raw >= 0.6:
		return 0.8
	case raw >= 0.4:
		return 0.6
	case raw >= 0.2:
		return 0.4
	default:
		return raw * 2
	}
}

func partialMatch(x, y string) bool {
	if len(x) < minPartialLen || len(y) < minPartialLen {
		return false
	}
	return strings.Contains(x, y) || strings.Contains(y, x)
}

func techSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, t := range in {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out[t] = true
		}
	}
	return out
}
