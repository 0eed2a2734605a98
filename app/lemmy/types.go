package lemmy

type loginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type loginResponse struct {
	JWT string `json:"jwt"`
}

type communityResponse struct {
	CommunityView struct {
		Community struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"community"`
	} `json:"community_view"`
}

type createPostRequest struct {
	Name        string `json:"name"`
	CommunityID int    `json:"community_id"`
	URL         string `json:"url,omitempty"`
	Body        string `json:"body,omitempty"`
	NSFW        bool   `json:"nsfw"`
	LanguageID  int    `json:"language_id,omitempty"`
}

type postResponse struct {
	PostView struct {
		Post struct {
			ID int `json:"id"`
		} `json:"post"`
	} `json:"post_view"`
}
