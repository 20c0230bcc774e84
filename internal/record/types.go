package record

// Record is one labelled health-sensor example. Answer is always the string
// form of the source value so integer classification labels and float
// regression targets can share one corpus.
type Record struct {
	Problem string `json:"problem"`
	Answer  string `json:"answer"`
	Source  string `json:"source"`
}

// SourceSet is the ordered contents of one loaded source. Immutable after load.
type SourceSet struct {
	Name    string
	Records []Record
}

// Split is one source's train/test partition.
type Split struct {
	Train []Record
	Test  []Record
}

// Corpus is the combined train/test corpus across all sources.
type Corpus struct {
	Train []Record
	Test  []Record
}
