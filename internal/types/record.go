package types

// NewsRecord is one harvested news item.
type NewsRecord struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// FieldNames is the record schema in serialization order.
var FieldNames = []string{"title", "date", "url", "content", "source"}

// Fields returns the record values in schema order.
func (r NewsRecord) Fields() []string {
	return []string{r.Title, r.Date, r.URL, r.Content, r.Source}
}
