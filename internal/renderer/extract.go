package renderer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extraction is a cleaned, self-contained HTML document ready for print
// rendering, plus the article title pulled from the page.
type Extraction struct {
	Title string
	HTML  string
}

const minTextLength = 10

var generalContentSelectors = []string{
	"article",
	"main",
	"[role=\"main\"]",
	".content",
	".article",
	".post",
	".story",
	".entry-content",
	".post-content",
	"#content",
	"#main",
	"#article",
}

var wikipediaContentSelectors = []string{
	"#mw-content-text",
	".mw-parser-output",
	".mw-body-content",
	"#bodyContent",
}

var wikipediaUnwantedSelectors = []string{
	".mw-jump-link",
	".mw-editsection",
	".reference",
	".references",
	".navbox",
	".infobox",
	".vertical-navbox",
	".quotebox",
	".metadata",
	".ambox",
	".sistersitebox",
	".printfooter",
	"#siteSub",
	"#jump-to-nav",
	".catlinks",
	".sidebar",
	".mw-redirect",
	"[role=\"navigation\"]",
	".mw-headline",
	".toc",
	"#toc",
	".hatnote",
	".shortdescription",
	".nomobile",
}

var unwantedClassFragments = []string{
	"ad", "advertisement", "banner", "sidebar", "comment", "social", "share", "menu", "popup",
}

var navigationPhrases = []string{"jump to", "navigation", "menu", "search"}

// ExtractArticle reduces an arbitrary page down to its readable article
// content. Wikipedia pages get a dedicated path because their chrome
// (infoboxes, reference markers, nav boxes) defeats the generic cleanup.
func ExtractArticle(html, pageURL string) (Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extraction{}, fmt.Errorf("parse page HTML: %w", err)
	}

	if strings.Contains(pageURL, "wikipedia.org") {
		return extractWikipedia(doc), nil
	}
	return extractGeneral(doc), nil
}

func extractGeneral(doc *goquery.Document) Extraction {
	doc.Find("script, style, nav, header, footer, aside, iframe, noscript").Remove()

	doc.Find("[class]").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		class = strings.ToLower(class)
		for _, fragment := range unwantedClassFragments {
			if strings.Contains(class, fragment) {
				sel.Remove()
				return
			}
		}
	})

	title := pageTitle(doc, "Article")
	content := firstMatch(doc, generalContentSelectors)

	var body strings.Builder
	seen := make(map[string]struct{})
	content.Find("h1, h2, h3, p, ul, ol, img").Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "img" {
			src, ok := sel.Attr("src")
			if !ok || src == "" {
				return
			}
			if strings.HasPrefix(src, "//") {
				src = "https:" + src
			}
			alt, _ := sel.Attr("alt")
			fmt.Fprintf(&body, "<img src=%q alt=%q />\n", src, alt)
			return
		}

		text := strings.TrimSpace(sel.Text())
		if len(text) < minTextLength {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		appendOuterHTML(&body, sel)
	})

	return Extraction{
		Title: title,
		HTML:  buildDocument(title, generalStyle, body.String(), ""),
	}
}

func extractWikipedia(doc *goquery.Document) Extraction {
	title := pageTitle(doc, "Wikipedia Article")
	content := firstMatch(doc, wikipediaContentSelectors)

	for _, selector := range wikipediaUnwantedSelectors {
		content.Find(selector).Remove()
	}
	content.Find("span[class], div[class]").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		if strings.Contains(strings.ToLower(class), "edit") {
			sel.Remove()
		}
	})

	var elements []*goquery.Selection
	seen := make(map[string]struct{})
	content.Find("h1, h2, h3, p, ul, ol, li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) < minTextLength {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		lower := strings.ToLower(text)
		for _, phrase := range navigationPhrases {
			if strings.Contains(lower, phrase) {
				return
			}
		}
		seen[text] = struct{}{}
		elements = append(elements, sel)
	})

	// Sparse results usually mean the structural pass cut too deep, so
	// fall back to anything with substantial text.
	if len(elements) < 5 {
		elements = elements[:0]
		seen = make(map[string]struct{})
		content.Find("h1, h2, h3, p").Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if len(text) > 20 {
				if _, dup := seen[text]; !dup {
					seen[text] = struct{}{}
					elements = append(elements, sel)
				}
			}
		})
	}

	var body strings.Builder
	for _, sel := range elements {
		appendOuterHTML(&body, sel)
	}

	footer := wikipediaFooter
	if len(elements) == 0 {
		footer = emptyContentNotice
	}

	return Extraction{
		Title: title,
		HTML:  buildDocument(title+" - Wikipedia", wikipediaStyle, body.String(), footer),
	}
}

func pageTitle(doc *goquery.Document, fallback string) string {
	if text := strings.TrimSpace(doc.Find("h1").First().Text()); text != "" {
		return text
	}
	if text := strings.TrimSpace(doc.Find("title").First().Text()); text != "" {
		return text
	}
	return fallback
}

func firstMatch(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			return sel
		}
	}
	return doc.Find("body").First()
}

func appendOuterHTML(body *strings.Builder, sel *goquery.Selection) {
	fragment, err := goquery.OuterHtml(sel)
	if err != nil {
		return
	}
	body.WriteString(fragment)
	body.WriteString("\n")
}

func buildDocument(title, style, body, footer string) string {
	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n<title>")
	doc.WriteString(htmlEscape(title))
	doc.WriteString("</title>\n<style>")
	doc.WriteString(style)
	doc.WriteString("</style>\n</head>\n<body>\n<h1>")
	doc.WriteString(htmlEscape(title))
	doc.WriteString("</h1>\n")
	doc.WriteString(body)
	doc.WriteString(footer)
	doc.WriteString("</body>\n</html>\n")
	return doc.String()
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}

const generalStyle = `
body { font-family: 'Georgia', serif; line-height: 1.6; max-width: 700px; margin: 40px auto; padding: 20px; color: #333; }
h1 { font-size: 28px; margin-bottom: 20px; color: #1a1a1a; border-bottom: 2px solid #4a5568; padding-bottom: 10px; }
h2 { font-size: 22px; margin-top: 30px; margin-bottom: 15px; color: #2d3748; }
h3 { font-size: 18px; margin-top: 25px; margin-bottom: 12px; color: #4a5568; }
p { margin-bottom: 16px; text-align: justify; }
img { max-width: 100%; height: auto; display: block; margin: 20px auto; }
ul, ol { margin-bottom: 16px; padding-left: 30px; }
`

const wikipediaStyle = `
body { font-family: 'Georgia', 'Times New Roman', serif; line-height: 1.7; max-width: 800px; margin: 40px auto; padding: 20px; color: #333; }
h1 { font-size: 32px; margin-bottom: 30px; color: #1a1a1a; border-bottom: 3px solid #2c5282; padding-bottom: 15px; text-align: center; }
h2 { font-size: 24px; margin-top: 40px; margin-bottom: 20px; color: #2d3748; border-bottom: 1px solid #cbd5e0; padding-bottom: 8px; }
h3 { font-size: 20px; margin-top: 30px; margin-bottom: 15px; color: #4a5568; }
p { margin-bottom: 20px; text-align: justify; font-size: 16px; line-height: 1.8; }
ul, ol { margin-bottom: 20px; padding-left: 40px; }
li { margin-bottom: 10px; font-size: 16px; line-height: 1.6; }
`

const wikipediaFooter = `<div style="margin-top: 50px; padding-top: 20px; border-top: 1px solid #e2e8f0; font-size: 14px; color: #718096; text-align: center;">Source: Wikipedia - The Free Encyclopedia</div>
`

const emptyContentNotice = `<div style="text-align: center; color: #666; margin-top: 100px;"><h3>No article content could be extracted</h3><p>The page might have a different structure than expected.</p></div>
`
