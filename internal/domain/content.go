package domain

type Testimonial struct {
	ID      ID     `json:"id,omitempty"`
	Name    string `json:"name"`
	Context string `json:"context"`
	Text    string `json:"text"`
}

type FAQ struct {
	ID       ID     `json:"id,omitempty"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type AmenityGroup struct {
	ID    ID       `json:"id,omitempty"`
	Title string   `json:"title"`
	Items []string `json:"items"`
}

type EventSpace struct {
	ID          ID     `json:"id,omitempty"`
	Name        string `json:"name"`
	Capacity    string `json:"capacity"`
	Description string `json:"description"`
}

type HouseRule struct {
	ID        ID     `json:"id,omitempty"`
	SortOrder int    `json:"sort_order"`
	RuleText  string `json:"rule_text"`
}
