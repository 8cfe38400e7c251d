package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	UUID         string    `json:"uuid"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Disabled     bool      `json:"disabled"`
	Admin        bool      `json:"admin"`
	DateCreated  time.Time `json:"datecreated"`
}

// Document is the root of an ingested hierarchy.
type Document struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Text        string `json:"text,omitempty"`
	Note        string `json:"note,omitempty"`
	ImageURL    string `json:"imageurl"`
	Publisher   string `json:"publisher"`
	AddedDate   string `json:"addeddate"`
	Thumbnail   string `json:"thumbnail"`
	WordCount   int    `json:"wordcount"`
	ProcessFlag bool   `json:"process"`
}

// Page is one parent chunk of a document. Name is "Page N", N being the
// 1-based splitter position.
type Page struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// Child is a retrieval fragment of a page, named "{pageIndex}-{childIndex}".
type Child struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// Question is a generated hypothetical question attached to a page.
type Question struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// Summary is the generated summary of a page.
type Summary struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name,omitempty"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// PageWrite is everything persisted for one page in a single transaction.
type PageWrite struct {
	DocumentID string
	Page       Page
	Children   []Child
}

// Match is one similarity search hit.
type Match struct {
	UUID  string  `json:"uuid"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// DocumentHierarchy is a document resolved with all of its pages.
type DocumentHierarchy struct {
	Document DocumentInfo    `json:"document"`
	Pages    []PageHierarchy `json:"pages"`
}

// DocumentInfo is the subset of document fields returned with answers.
type DocumentInfo struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	AddedDate string `json:"addeddate"`
	ImageURL  string `json:"imageurl"`
	Publisher string `json:"publisher"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
	WordCount int    `json:"wordcount"`
}

type PageHierarchy struct {
	UUID      string     `json:"uuid"`
	Name      string     `json:"name"`
	Cited     bool       `json:"cited"`
	Summaries []NodeRef  `json:"summaries"`
	Questions []NodeRef  `json:"questions"`
	Children  []ChildRef `json:"children"`
}

type NodeRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Text string `json:"text"`
}

type ChildRef struct {
	NodeRef
	Cited bool `json:"cited"`
}

// RawDocument is the normalized output of a page or file extractor.
type RawDocument struct {
	Title     string
	Text      string
	ImageURL  string
	Publisher string
	Thumbnail string
	WordCount int
}

// Answer is the response to a question asked over the indexed documents.
type Answer struct {
	Answer       string              `json:"answer"`
	Sources      []DocumentHierarchy `json:"sources"`
	Timings      AnswerTimings       `json:"timings"`
	PayloadSizes PayloadSizes        `json:"payload_sizes"`
}

// AnswerTimings are wall-clock durations in seconds.
type AnswerTimings struct {
	RetrievalDuration float64 `json:"retrieval_duration"`
	HierarchyDuration float64 `json:"hierarchy_duration"`
	TotalDuration     float64 `json:"total_duration"`
}

// PayloadSizes are byte sizes of the question, the raw completion and the
// resolved hierarchy.
type PayloadSizes struct {
	RequestSize    int `json:"request_size"`
	ResponseSize   int `json:"response_size"`
	DBResponseSize int `json:"db_response_size"`
}
