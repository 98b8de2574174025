package domain

// Template is the target output template a structure must fit.
type Template struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Sections []string `json:"sections"`
}
