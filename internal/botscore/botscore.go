// Package botscore estimates how likely a profile is automated or fake.
// Scoring is deterministic: the same input always yields the same score.
package botscore

import (
	"regexp"
	"strings"
)

// Signal weights. They sum to 1.0.
const (
	WeightNoProfilePic      = 0.15
	WeightEmptyBio          = 0.10
	WeightLowPosts          = 0.20
	WeightUsername          = 0.10
	WeightRatio             = 0.15
	WeightMassFollowing     = 0.10
	WeightFollowingLowPosts = 0.10
	WeightGenericName       = 0.05
	WeightNoExternalURL     = 0.05
)

// DefaultThreshold is the score at or above which a profile is treated as a bot
const DefaultThreshold = 0.6

var genericNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(follow|followers|likes|promo|giveaway|free|crypto|forex|earn money)\b`),
	regexp.MustCompile(`(?i)^(user|account|profile)\s*\d*$`),
	regexp.MustCompile(`\d{4,}`),
	regexp.MustCompile(`^[^\p{L}]+$`),
}

// Input carries the profile signals the scorer reads
type Input struct {
	Username       string
	FullName       string
	HasProfilePic  bool
	Biography      string
	PostCount      int
	FollowerCount  int
	FollowingCount int
	IsPrivate      bool
	HasExternalURL bool
}

// Signal is one weighted contribution to the total score
type Signal struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Result is the aggregate bot score with its breakdown
type Result struct {
	Score            float64          `json:"score"`
	Signals          []Signal         `json:"signals"`
	UsernameAnalysis UsernameAnalysis `json:"usernameAnalysis"`
	RatioAnalysis    RatioAnalysis    `json:"ratioAnalysis"`
}

// IsLikelyBot reports whether the score meets threshold
func (r Result) IsLikelyBot(threshold float64) bool {
	return r.Score >= threshold
}

// Score computes the weighted bot probability for in
func Score(in Input) Result {
	r := Result{
		Signals:          []Signal{},
		UsernameAnalysis: AnalyzeUsername(in.Username),
		RatioAnalysis:    AnalyzeRatio(in.FollowerCount, in.FollowingCount),
	}
	add := func(name string, weight, factor float64) {
		if factor <= 0 {
			return
		}
		c := weight * factor
		r.Score += c
		r.Signals = append(r.Signals, Signal{Name: name, Weight: weight, Contribution: c})
	}

	if !in.HasProfilePic {
		add("no_profile_pic", WeightNoProfilePic, 1)
	}
	if strings.TrimSpace(in.Biography) == "" {
		add("empty_biography", WeightEmptyBio, 1)
	}
	switch {
	case in.PostCount <= 0:
		add("no_posts", WeightLowPosts, 1)
	case in.PostCount <= 2:
		add("few_posts", WeightLowPosts, 0.5)
	}
	add("suspicious_username", WeightUsername, r.UsernameAnalysis.Score)
	add("extreme_ratio", WeightRatio, r.RatioAnalysis.Score)
	if in.FollowingCount > 5000 {
		add("mass_following", WeightMassFollowing, 1)
	}
	if in.FollowingCount > 500 && in.PostCount < 5 {
		add("following_without_posts", WeightFollowingLowPosts, 1)
	}
	if genericName(in.FullName) {
		add("generic_display_name", WeightGenericName, 1)
	}
	if !in.HasExternalURL {
		add("no_external_url", WeightNoExternalURL, 1)
	}

	r.Score = ClampScore(r.Score)
	return r
}

func genericName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, p := range genericNamePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// ClampScore bounds a score to [0,1]
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
