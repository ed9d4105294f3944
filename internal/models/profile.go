package models

// ProfileSnapshot is a freshly fetched view of a remote account
type ProfileSnapshot struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	FullName       string `json:"fullName"`
	Biography      string `json:"biography"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	HasProfilePic  bool   `json:"hasProfilePic"`
	ExternalURL    string `json:"externalUrl,omitempty"`
	IsPrivate      bool   `json:"isPrivate"`
	IsVerified     bool   `json:"isVerified"`
	PostCount      int    `json:"postCount"`
	FollowerCount  int    `json:"followerCount"`
	FollowingCount int    `json:"followingCount"`
}

// ApplyProfile copies fresh counts and flags onto the prospect
func (p *Prospect) ApplyProfile(s *ProfileSnapshot) {
	if s == nil {
		return
	}
	if s.Username != "" {
		p.Username = s.Username
	}
	p.FullName = s.FullName
	if s.AvatarURL != "" {
		p.AvatarURL = s.AvatarURL
	}
	p.IsPrivate = s.IsPrivate
	p.IsVerified = s.IsVerified
	p.PostCount = s.PostCount
	p.FollowerCount = s.FollowerCount
	p.FollowingCount = s.FollowingCount
}
