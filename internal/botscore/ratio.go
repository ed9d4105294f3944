package botscore

import "math"

// RatioAnalysis is the follower/following sub-score
type RatioAnalysis struct {
	Ratio float64  `json:"ratio"`
	Score float64  `json:"score"`
	Flags []string `json:"flags"`
}

// FollowRatio returns followers/following with zero guards:
// 0 followers and some following is 0, both zero is 1.
func FollowRatio(followers, following int) float64 {
	switch {
	case following == 0 && followers == 0:
		return 1
	case following == 0:
		return float64(followers)
	default:
		return float64(followers) / float64(following)
	}
}

// AnalyzeRatio scores how lopsided an account's follow graph is
func AnalyzeRatio(followers, following int) RatioAnalysis {
	a := RatioAnalysis{
		Ratio: FollowRatio(followers, following),
		Flags: []string{},
	}
	add := func(w float64, flag string) {
		a.Score += w
		a.Flags = append(a.Flags, flag)
	}

	switch {
	case following > 5000:
		add(0.3, "following_over_5000")
	case following > 2000:
		add(0.15, "following_over_2000")
	}

	switch {
	case a.Ratio < 0.1 && following > 500:
		add(0.35, "ratio_under_0.1")
	case a.Ratio < 0.3 && following > 300:
		add(0.2, "ratio_under_0.3")
	}

	if followers == 0 && following > 100 {
		add(0.4, "zero_followers")
	}

	if followers > 100_000 && following < 100 {
		a.Score = math.Max(0, a.Score-0.2)
		a.Flags = append(a.Flags, "celebrity_exemption")
	}

	a.Score = ClampScore(a.Score)
	return a
}
