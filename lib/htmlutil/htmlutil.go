package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every text node under `node`, the way textContent does.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Normalize trims `s`, drops non-printable runes and collapses inner runs of whitespace.
func Normalize(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

// Text returns the normalized text of the first node in `sel`, or "" if it is empty.
func Text(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return Normalize(GetText(sel.Get(0)))
}

// RawText returns the text of the first node in `sel` untouched, useful for
// <script> payloads where whitespace is part of the data.
func RawText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return GetText(sel.Get(0))
}
