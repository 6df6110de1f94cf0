package search

// Result is a single proposal hit returned to the caller.
type Result struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
	ClientName     string `json:"clientName"`
	BrandName      string `json:"brandName"`
	Snippet        string `json:"snippet,omitempty"`
}

// Query describes a search request over saved proposals.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over saved proposals.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push proposals into a search index.
type Indexer interface {
	IndexProposal(rec ProposalRecord) error
	DeleteProposal(conversationID string) error
}

// ProposalRecord is the data we index for a proposal.
type ProposalRecord struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
	ClientName     string `json:"clientName"`
	BrandName      string `json:"brandName"`
	WishList       string `json:"wishList"`
}
