package scraper

// DefaultBaseURL is the site harvested when no profile overrides it.
const DefaultBaseURL = "https://www.dhakapost.com"

// Category is one listing section of the site. FeedURL is optional; when
// set, links from the feed are merged with the listing's links.
type Category struct {
	Name    string `json:"name" yaml:"name"`
	URL     string `json:"url" yaml:"url"`
	FeedURL string `json:"feed_url,omitempty" yaml:"feed_url,omitempty"`
}

// DefaultCategories returns the listing pages harvested on every run.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Latest", URL: DefaultBaseURL + "/latest-news"},
		{Name: "Bangladesh", URL: DefaultBaseURL + "/bangladesh"},
		{Name: "World", URL: DefaultBaseURL + "/world"},
		{Name: "Sports", URL: DefaultBaseURL + "/sports"},
		{Name: "Entertainment", URL: DefaultBaseURL + "/entertainment"},
	}
}
