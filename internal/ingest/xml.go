package ingest

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// jatsArticle maps the parts of a PubMed Central JATS document we need.
type jatsArticle struct {
	Front struct {
		ArticleMeta struct {
			TitleGroup struct {
				ArticleTitle string `xml:"article-title"`
			} `xml:"title-group"`
			Abstract *jatsSec `xml:"abstract"`
		} `xml:"article-meta"`
	} `xml:"front"`
	Body struct {
		Secs []jatsSec `xml:"sec"`
	} `xml:"body"`
}

type jatsSec struct {
	Title string    `xml:"title"`
	Paras []string  `xml:"p"`
	Secs  []jatsSec `xml:"sec"`
}

// ExtractXML flattens a PMC JATS article into text with uppercase heading
// lines, so the downstream section parser sees the same shape as a
// cleaned PDF.
func ExtractXML(content []byte) (string, error) {
	var article jatsArticle
	if err := xml.Unmarshal(content, &article); err != nil {
		return "", fmt.Errorf("failed to parse xml: %w", err)
	}

	var parts []string
	if title := strings.TrimSpace(article.Front.ArticleMeta.TitleGroup.ArticleTitle); title != "" {
		parts = append(parts, "TITLE: "+title)
	}
	if abs := article.Front.ArticleMeta.Abstract; abs != nil {
		if text := flattenAbstract(abs); text != "" {
			parts = append(parts, "ABSTRACT\n\n"+text)
		}
	}
	for _, sec := range article.Body.Secs {
		if text := flattenSec(sec); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text extracted from xml")
	}
	return strings.Join(parts, "\n\n"), nil
}

// flattenAbstract joins a structured abstract's subsections inline, with
// "Label: text" markers instead of heading lines, so the whole abstract
// stays one section.
func flattenAbstract(sec *jatsSec) string {
	var parts []string
	for _, p := range sec.Paras {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	for _, sub := range sec.Secs {
		text := strings.TrimSpace(strings.Join(trimAll(sub.Paras), " "))
		if text == "" {
			continue
		}
		if title := strings.TrimSpace(sub.Title); title != "" {
			text = title + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func flattenSec(sec jatsSec) string {
	var parts []string
	if title := strings.TrimSpace(sec.Title); title != "" {
		parts = append(parts, strings.ToUpper(title))
	}
	for _, p := range trimAll(sec.Paras) {
		parts = append(parts, p)
	}
	for _, sub := range sec.Secs {
		if text := flattenSec(sub); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
