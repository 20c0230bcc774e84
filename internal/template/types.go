package template

// Message is one turn of a templated conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Example is one templated training example. Prompt always holds exactly two
// turns: the variant's system instruction followed by the user problem.
type Example struct {
	Prompt []Message `json:"prompt"`
	Answer string    `json:"answer"`
	Source string    `json:"source"`
}

// Corpus is a fully templated train/test corpus for one variant.
type Corpus struct {
	Train []Example `json:"train"`
	Test  []Example `json:"test"`
}
