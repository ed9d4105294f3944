package botscore

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestScore_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		wantBot bool
	}{
		{
			name: "follow-farm account",
			input: Input{
				Username:       "follow_me_12345678",
				HasProfilePic:  false,
				Biography:      "",
				PostCount:      0,
				FollowerCount:  5,
				FollowingCount: 7500,
			},
			wantBot: true,
		},
		{
			name: "ordinary traveller",
			input: Input{
				Username:       "jane_travel",
				HasProfilePic:  true,
				Biography:      "hi",
				PostCount:      120,
				FollowerCount:  1500,
				FollowingCount: 800,
			},
			wantBot: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(tt.input)
			assert.Equal(t, tt.wantBot, r.IsLikelyBot(DefaultThreshold), "score=%v signals=%v", r.Score, r.Signals)
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	in := Input{Username: "xkcdqrst_99999", FollowingCount: 3000, FollowerCount: 10}
	assert.Equal(t, Score(in), Score(in))
}

func TestScore_FewPostsHalfWeight(t *testing.T) {
	base := Input{Username: "maria", HasProfilePic: true, Biography: "bio", FollowerCount: 100, FollowingCount: 100, HasExternalURL: true}

	zero := base
	two := base
	two.PostCount = 2
	many := base
	many.PostCount = 50

	assert.InDelta(t, WeightLowPosts, Score(zero).Score, 1e-9)
	assert.InDelta(t, WeightLowPosts/2, Score(two).Score, 1e-9)
	assert.InDelta(t, 0, Score(many).Score, 1e-9)
}

func TestWeightsSumToOne(t *testing.T) {
	sum := WeightNoProfilePic + WeightEmptyBio + WeightLowPosts + WeightUsername + WeightRatio +
		WeightMassFollowing + WeightFollowingLowPosts + WeightGenericName + WeightNoExternalURL
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestAnalyzeUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     float64
	}{
		{"clean", "jane_travel", 0},
		{"digit run with trailing digits", "anna12345", 0.4},
		{"three trailing digits", "anna123", 0.1},
		{"underscores", "a_b_c_d_e", 0.2},
		{"prefix only first match", "follow_anna", 0.25},
		{"suffix", "anna_shop", 0.2},
		{"keyword", "annagiveaway", 0.15},
		{"vowel free run", "xkcdqrst", 0.2},
		{"capped", "follow_f4f_x_y_zzkkttp_1234567_bot", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AnalyzeUsername(tt.username).Score, 1e-9)
		})
	}
}

func TestAnalyzeRatio(t *testing.T) {
	tests := []struct {
		name      string
		followers int
		following int
		wantRatio float64
		wantScore float64
	}{
		{"both zero", 0, 0, 1, 0},
		{"zero followers", 0, 150, 0, 0.4},
		{"mass following tiny ratio", 5, 7500, 5.0 / 7500, 0.65},
		{"moderate following low ratio", 100, 400, 0.25, 0.2},
		{"balanced", 1500, 800, 1.875, 0},
		{"celebrity", 2_000_000, 50, 40_000, 0},
		{"over 2000", 1000, 2500, 0.4, 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzeRatio(tt.followers, tt.following)
			assert.InDelta(t, tt.wantRatio, a.Ratio, 1e-9)
			assert.InDelta(t, tt.wantScore, a.Score, 1e-9)
		})
	}
}

func TestGenericName(t *testing.T) {
	assert.False(t, genericName(""))
	assert.False(t, genericName("Jane Doe"))
	assert.True(t, genericName("Free Followers"))
	assert.True(t, genericName("user 2931"))
	assert.True(t, genericName("___"))
}

// Property: the score is always within [0,1]
func TestScore_RangeProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("score within unit interval", prop.ForAll(
		func(username string, pic bool, posts, followers, following int) bool {
			r := Score(Input{
				Username:       username,
				HasProfilePic:  pic,
				PostCount:      posts,
				FollowerCount:  followers,
				FollowingCount: following,
			})
			return r.Score >= 0 && r.Score <= 1
		},
		gen.AlphaString(),
		gen.Bool(),
		gen.IntRange(0, 10_000),
		gen.IntRange(0, 5_000_000),
		gen.IntRange(0, 10_000),
	))

	properties.TestingRun(t)
}
