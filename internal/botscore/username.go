package botscore

import (
	"strings"
	"unicode"
)

var (
	botPrefixes = []string{"follow", "insta", "the_real", "official_", "user_", "ig_", "real_"}
	botSuffixes = []string{"_bot", "bot", "_official", "_shop", "_store", "_promo", "_ig"}
	botKeywords = []string{
		"f4f", "l4l", "followback", "follow4follow", "like4like",
		"giveaway", "promo", "crypto", "bitcoin", "forex", "earn", "free",
	}
)

// UsernameAnalysis is the username sub-score and the flags that raised it
type UsernameAnalysis struct {
	Score float64  `json:"score"`
	Flags []string `json:"flags"`
}

// AnalyzeUsername scores how machine-generated a username looks
func AnalyzeUsername(username string) UsernameAnalysis {
	name := strings.ToLower(strings.TrimSpace(username))
	a := UsernameAnalysis{Flags: []string{}}
	add := func(w float64, flag string) {
		a.Score += w
		a.Flags = append(a.Flags, flag)
	}

	if longestRun(name, unicode.IsDigit) >= 5 {
		add(0.3, "digit_run")
	}
	if trailingDigits(name) >= 3 {
		add(0.1, "trailing_digits")
	}
	if strings.Count(name, "_") >= 4 {
		add(0.2, "excessive_underscores")
	}
	if len(name) > 25 {
		add(0.15, "long_username")
	}

	for _, p := range botPrefixes {
		if strings.HasPrefix(name, p) {
			add(0.25, "bot_prefix:"+p)
			break
		}
	}
	for _, s := range botSuffixes {
		if strings.HasSuffix(name, s) {
			add(0.20, "bot_suffix:"+s)
			break
		}
	}
	for _, k := range botKeywords {
		if strings.Contains(name, k) {
			add(0.15, "keyword:"+k)
			break
		}
	}

	letters := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '_' || r == '.' {
			return -1
		}
		return r
	}, name)
	if longestRun(letters, isConsonant) >= 5 {
		add(0.2, "no_vowels")
	}

	a.Score = ClampScore(a.Score)
	return a
}

func isConsonant(r rune) bool {
	if !unicode.IsLetter(r) {
		return false
	}
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return false
	}
	return true
}

func longestRun(s string, match func(rune) bool) int {
	best, cur := 0, 0
	for _, r := range s {
		if match(r) {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

func trailingDigits(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		n++
	}
	return n
}
