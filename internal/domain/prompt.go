package domain

// Prompt is the pair of messages sent to the generation model.
type Prompt struct {
	System string
	User   string
}
