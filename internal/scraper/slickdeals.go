package scraper

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/util"
)

const SourceSlickdeals = "slickdeals"

const (
	slickdealsAuthor = "Slickdeals"
	slickdealsIcon   = "https://pbs.twimg.com/profile_images/1567889761729134597/nzAeYF12_400x400.jpg"
	slickdealsColor  = 1339380
)

type Slickdeals struct {
	sel SourceSelectors
}

func NewSlickdeals(sel SourceSelectors) *Slickdeals {
	return &Slickdeals{sel: sel}
}

func (s *Slickdeals) Source() string { return SourceSlickdeals }

func (s *Slickdeals) Branding() models.Branding {
	return models.Branding{
		AuthorName: slickdealsAuthor,
		AuthorURL:  s.sel.Homepage,
		IconURL:    slickdealsIcon,
		Color:      slickdealsColor,
	}
}

func (s *Slickdeals) SearchRequest(q models.QuerySpec) (string, url.Values) {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = s.sel.DefaultPerPage
	}
	sortOrder := q.Sort
	if sortOrder == "" {
		sortOrder = s.sel.DefaultSort
	}
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("pp", strconv.Itoa(perPage))
	params.Set("sort", sortOrder)
	return s.sel.Homepage + s.sel.SearchPath, params
}

func (s *Slickdeals) ExtractListing(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		if !hasExactClass(a, s.sel.Listing.PostLinkClass) {
			return
		}
		href, ok := a.Attr("href")
		// Absolute links with the post class are sponsored placements.
		if !ok || !util.IsRelativeLink(href) {
			return
		}
		link, err := util.AbsoluteURL(s.sel.Homepage, href)
		if err != nil || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}

func (s *Slickdeals) ExtractDetail(body []byte, postID string) Detail {
	d := Detail{Record: models.DealRecord{PostID: postID}}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return d
	}

	d.Record.Title = strings.TrimSpace(doc.Find("title").First().Text())

	// No price element means the deal is free.
	doc.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if !hasExactClass(div, s.sel.Detail.PriceClass) {
			return true
		}
		if price, ok := util.ParsePrice(div.Text()); ok {
			d.Record.Price = price
		}
		return false
	})

	doc.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		if !hasExactClass(span, s.sel.Detail.ScoreClass) {
			return true
		}
		d.Record.DealScore = util.ParseScore(span.Text())
		return false
	})

	doc.Find("meta").EachWithBreak(func(_ int, meta *goquery.Selection) bool {
		if prop, _ := meta.Attr("property"); prop != s.sel.Detail.ImageProperty {
			return true
		}
		content := strings.TrimSpace(meta.AttrOr("content", ""))
		if content == "" {
			return false
		}
		if abs, err := util.AbsoluteURL(s.sel.Homepage, content); err == nil {
			d.Record.Image = abs
		}
		return false
	})

	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != s.sel.Detail.SeeDealText {
			return true
		}
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href != "" {
			if abs, err := util.AbsoluteURL(s.sel.Homepage, href); err == nil {
				d.TrackedLink = abs
			}
		}
		return false
	})

	return d
}

// hasExactClass compares the whole class attribute, not membership of one class.
func hasExactClass(s *goquery.Selection, class string) bool {
	attr, ok := s.Attr("class")
	if !ok {
		return false
	}
	return strings.Join(strings.Fields(attr), " ") == class
}
