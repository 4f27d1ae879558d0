package importer

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
)

const (
	// MaxHTMLSize limits page bodies to 10MB.
	MaxHTMLSize = 10 * 1024 * 1024

	AttrBlockID   = "data-block-id"
	AttrBlockType = "data-block-type"
)

var (
	ErrNotHTML  = errors.New("response is not an html document")
	ErrTooLarge = errors.New("html document too large")
)

// checkHTML rejects bodies that are neither sniffed nor declared as HTML.
func checkHTML(body []byte, contentType string) error {
	if len(body) > MaxHTMLSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(body))
	}
	for mt := mimetype.Detect(body); mt != nil; mt = mt.Parent() {
		if mt.Is("text/html") || mt.Is("application/xhtml+xml") {
			return nil
		}
	}
	if media, _, err := mime.ParseMediaType(contentType); err == nil && media == "text/html" {
		// Fragments without a recognizable signature still count when the
		// site declares them.
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotHTML, mimetype.Detect(body).String())
}

// detectCharset guesses the charset of a body with no declared one.
func detectCharset(body []byte) string {
	detector := chardet.NewHtmlDetector()
	result, err := detector.DetectBest(body)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// utf8Reader returns body decoded to UTF-8. A charset declared in the
// Content-Type header wins over detection.
func utf8Reader(body []byte, contentType string) io.Reader {
	if _, params, err := mime.ParseMediaType(contentType); err != nil || params["charset"] == "" {
		contentType = "text/html; charset=" + detectCharset(body)
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return bytes.NewReader(body)
	}
	return r
}

// element is the view of a matched node the snapshot is built from.
type element struct {
	tag       string
	id        string
	blockType string
	innerHTML string
	src       string
	hasChild  bool
}

// extractor turns matched elements into snapshot entries.
type extractor struct {
	policy *bluemonday.Policy
	base   *url.URL
}

func (x extractor) entry(el element) (reconcile.Entry, bool) {
	id := strings.TrimSpace(el.id)
	if id == "" {
		return reconcile.Entry{}, false
	}

	e := reconcile.Entry{ID: id, Type: blockType(el)}
	switch e.Type {
	case document.TypeText:
		text := x.text(el.innerHTML)
		e.Text = &text
	case document.TypeImage:
		if el.src != "" {
			src := x.resolve(el.src)
			e.Src = &src
		}
	case "":
		// Untyped leaves still carry their text for backfill.
		if !el.hasChild {
			text := x.text(el.innerHTML)
			e.Text = &text
		}
	}
	return e, true
}

func blockType(el element) document.BlockType {
	switch t := document.BlockType(strings.ToLower(strings.TrimSpace(el.blockType))); t {
	case document.TypeContainer, document.TypeText, document.TypeImage:
		return t
	}
	if el.tag == "img" {
		return document.TypeImage
	}
	return ""
}

func (x extractor) text(inner string) string {
	return strings.TrimSpace(html.UnescapeString(x.policy.Sanitize(inner)))
}

func (x extractor) resolve(src string) string {
	if x.base == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return x.base.ResolveReference(ref).String()
}

// selectCSS finds block elements with a CSS selector.
func (x extractor) selectCSS(r io.Reader, selector string) (reconcile.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	snap := reconcile.Snapshot{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		inner, _ := s.Html()
		el := element{
			tag:       goquery.NodeName(s),
			id:        s.AttrOr(AttrBlockID, ""),
			blockType: s.AttrOr(AttrBlockType, ""),
			innerHTML: inner,
			hasChild:  s.Children().Length() > 0,
		}
		if el.tag == "img" {
			el.src = s.AttrOr("src", "")
		} else {
			el.src = s.Find("img").First().AttrOr("src", "")
		}
		if e, ok := x.entry(el); ok {
			snap = append(snap, e)
		}
	})
	return snap, nil
}

// selectXPath finds block elements with an XPath expression.
func (x extractor) selectXPath(r io.Reader, expr string) (reconcile.Snapshot, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}

	snap := reconcile.Snapshot{}
	for _, n := range nodes {
		if n.Type != xhtml.ElementNode {
			continue
		}
		el := element{
			tag:       n.Data,
			id:        htmlquery.SelectAttr(n, AttrBlockID),
			blockType: htmlquery.SelectAttr(n, AttrBlockType),
			innerHTML: htmlquery.OutputHTML(n, false),
			hasChild:  hasElementChild(n),
		}
		if el.tag == "img" {
			el.src = htmlquery.SelectAttr(n, "src")
		} else if img := htmlquery.FindOne(n, ".//img"); img != nil {
			el.src = htmlquery.SelectAttr(img, "src")
		}
		if e, ok := x.entry(el); ok {
			snap = append(snap, e)
		}
	}
	return snap, nil
}

func hasElementChild(n *xhtml.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.ElementNode {
			return true
		}
	}
	return false
}
