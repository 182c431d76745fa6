// Package policy implements the document-retrieval backend for small
// business support programs: an XML corpus loader, an in-memory embedding
// index and a handler that answers questions over retrieved chunks.
package policy

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/schema"
)

// Entry is one section of one support program, extracted from the corpus.
type Entry struct {
	Category    string
	Subcategory string
	Title       string
	URL         string
	Section     string
	Content     string
}

// Administrative sections carry no policy substance and are dropped.
var skippedSections = map[string]bool{
	"문의처": true,
	"설문":  true,
	"만족도": true,
}

type corpusXML struct {
	Categories []categoryXML `xml:"Category"`
}

type categoryXML struct {
	Name          string           `xml:"name,attr"`
	Subcategories []subcategoryXML `xml:"Subcategory"`
	Items         []itemXML        `xml:"Item"`
}

type subcategoryXML struct {
	Name  string    `xml:"name,attr"`
	Items []itemXML `xml:"Item"`
}

type itemXML struct {
	Title   string `xml:"Title"`
	URL     string `xml:"URL"`
	Content string `xml:"Content"`
}

// LoadCorpus parses the scraped support-program corpus. Each item's Content
// is an HTML fragment of definition lists; every dt/dd pair becomes one
// Entry. The HTML is sanitized before parsing since the corpus is scraped
// from the public web.
func LoadCorpus(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	var corpus corpusXML
	if err := xml.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}

	sanitizer := bluemonday.UGCPolicy()

	var entries []Entry
	for _, category := range corpus.Categories {
		if len(category.Subcategories) > 0 {
			for _, subcategory := range category.Subcategories {
				for _, item := range subcategory.Items {
					sections, err := extractSections(sanitizer, item)
					if err != nil {
						return nil, err
					}
					for i := range sections {
						sections[i].Category = category.Name
						sections[i].Subcategory = subcategory.Name
					}
					entries = append(entries, sections...)
				}
			}
			continue
		}
		for _, item := range category.Items {
			sections, err := extractSections(sanitizer, item)
			if err != nil {
				return nil, err
			}
			for i := range sections {
				sections[i].Category = category.Name
			}
			entries = append(entries, sections...)
		}
	}
	return entries, nil
}

func extractSections(sanitizer *bluemonday.Policy, item itemXML) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitizer.Sanitize(item.Content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content of %q: %w", item.Title, err)
	}

	var sections []Entry
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dt := dl.Find("dt").First()
		dd := dl.Find("dd").First()
		if dt.Length() == 0 || dd.Length() == 0 {
			return
		}
		sections = append(sections, Entry{
			Title:   item.Title,
			URL:     item.URL,
			Section: strings.TrimSpace(dt.Text()),
			Content: strings.TrimSpace(dd.Text()),
		})
	})
	return sections, nil
}

// Documents formats the entries for indexing, dropping administrative
// sections. The field labels in the text body are load-bearing: the answer
// prompt instructs the model to treat 사업명 as the only program name.
func Documents(entries []Entry) []schema.Document {
	docs := make([]schema.Document, 0, len(entries))
	for _, entry := range entries {
		if skippedSections[entry.Section] {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: fmt.Sprintf(
				"카테고리: %s\n소분류: %s\n사업명: %s\n구분: %s\n내용:\n%s",
				orNone(entry.Category), orNone(entry.Subcategory), entry.Title, entry.Section, entry.Content,
			),
			Metadata: map[string]any{
				"title":  entry.Title,
				"source": entry.URL,
			},
		})
	}
	return docs
}

func orNone(s string) string {
	if s == "" {
		return "없음"
	}
	return s
}
