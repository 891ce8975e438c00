package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rental-pipeline/models"
)

// parseSearchPage extracts the result rows of a search page. Rows listed
// under the "nearby areas" banner belong to other areas and are dropped.
func parseSearchPage(doc []byte, base string, q Query) ([]rowResult, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	baseURL, _ := url.Parse(base)

	var rows []rowResult
	page.Find("ul.rows").Children().EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if el.Is("h4.nearby") {
			return false
		}
		if !el.Is("li.result-row") {
			return true
		}
		res, err := parseRow(el, baseURL)
		res.Site, res.Area, res.Category = q.Site, q.Area, q.Category
		rows = append(rows, rowResult{result: res, err: err})
		return true
	})
	return rows, nil
}

func parseRow(el *goquery.Selection, base *url.URL) (models.RawResult, error) {
	var res models.RawResult
	res.ID, _ = el.Attr("data-pid")
	if res.ID == "" {
		return res, fmt.Errorf("result row without data-pid")
	}

	title := el.Find("a.result-title").First()
	res.Name = strings.TrimSpace(title.Text())
	href, ok := title.Attr("href")
	if !ok || href == "" {
		return res, fmt.Errorf("result %s: missing link", res.ID)
	}
	if u, err := url.Parse(href); err == nil && base != nil {
		href = base.ResolveReference(u).String()
	}
	res.URL = href

	res.Datetime, _ = el.Find("time.result-date").First().Attr("datetime")
	res.Price = strings.TrimSpace(el.Find("span.result-price").First().Text())

	hood := strings.TrimSpace(el.Find("span.result-hood").First().Text())
	res.Where = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(hood, "("), ")"))

	if img := el.Find("a.result-image").First(); img.Length() > 0 {
		res.HasImage = !img.HasClass("empty")
	}
	return res, nil
}
