package sunvoy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sunvoy-scraper/lib/htmlutil"
	"sunvoy-scraper/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_extractor_parse    = "extractor.parse"
	report_extractor_strategy = "extractor.strategy"
)

// Target describes a value the extractor looks for in a page.
type Target struct {
	// Key is the JSON property the value is stored under.
	Key string
	// Island is the id of a <script> element whose whole body is the value.
	Island string
	// Plural targets are a non-empty list of records, others a single record.
	Plural bool
}

var (
	CurrentUserTarget = Target{Key: "currentUser", Island: "user-data"}
	UsersTarget       = Target{Key: "users", Island: "users-data", Plural: true}
)

// accept checks a decoded JSON value against the shape the target requires and
// converts it to RawUser or []RawUser.
func (t Target) accept(v any) (any, bool) {
	if !t.Plural {
		obj, ok := v.(map[string]any)
		if !ok || !truthy(obj["id"]) {
			return nil, false
		}
		return RawUser(obj), true
	}

	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	users := make([]RawUser, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		users = append(users, RawUser(obj))
	}
	return users, true
}

// page is the html being searched, both as raw bytes for the text based
// strategies and as a parsed document for the DOM based ones.
type page struct {
	raw []byte
	// nil if the html could not be parsed
	doc *goquery.Document
}

// strategy is one way of finding a target inside a page. A strategy never fails,
// anything it cannot use (missing elements, malformed json) is just not found.
type strategy interface {
	name() string
	attempt(p page, target Target) (any, bool)
}

// Extractor recovers user data from the html of a page by trying a fixed list of
// strategies in order, the first one to find a value of the right shape wins.
type Extractor struct {
	tel        telemetry.API
	strategies []strategy
}

func NewExtractor(tel telemetry.API) Extractor {
	return Extractor{
		tel: telemetry.NewScopedAPI("extractor", tel),
		strategies: []strategy{
			nextDataStrategy{},
			keyScanStrategy{},
			dataIslandStrategy{},
			markupStrategy{},
		},
	}
}

// Extract returns a RawUser (singular target) or a non-empty []RawUser (plural target)
// found in `html`. `pageName` is only used to describe the failure, which is always an
// *ExtractionError.
func (e Extractor) Extract(ctx context.Context, html []byte, target Target, pageName string) (any, error) {
	_, span := tracer.Start(ctx, "extractor:Extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("target", target.Key),
		attribute.String("page", pageName),
	)

	p := page{raw: html}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		e.tel.ReportWarning(report_extractor_parse, fmt.Errorf("parse %s: %w", pageName, err))
	} else {
		p.doc = doc
	}

	for _, s := range e.strategies {
		value, found := s.attempt(p, target)
		if found {
			e.tel.ReportDebug("strategy matched", s.name(), target.Key)
			span.SetAttributes(attribute.String("strategy", s.name()))
			return value, nil
		}
		e.tel.ReportDebug("strategy missed", s.name(), target.Key)
	}

	err = &ExtractionError{Target: target.Key, Page: pageName}
	e.tel.ReportWarning(report_extractor_strategy, err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

// CurrentUser extracts the logged in user's record.
func (e Extractor) CurrentUser(ctx context.Context, html []byte, pageName string) (RawUser, error) {
	value, err := e.Extract(ctx, html, CurrentUserTarget, pageName)
	if err != nil {
		return nil, err
	}
	return value.(RawUser), nil
}

// Users extracts the list of every user, it is never empty on success.
func (e Extractor) Users(ctx context.Context, html []byte, pageName string) ([]RawUser, error) {
	value, err := e.Extract(ctx, html, UsersTarget, pageName)
	if err != nil {
		return nil, err
	}
	return value.([]RawUser), nil
}

// nextDataStrategy searches the page state blob that server rendered react apps
// inline as <script id="__NEXT_DATA__">.
type nextDataStrategy struct{}

func (nextDataStrategy) name() string {
	return "next-data"
}

func (nextDataStrategy) attempt(p page, target Target) (any, bool) {
	if p.doc == nil {
		return nil, false
	}
	blob := htmlutil.RawText(p.doc.Find("script#__NEXT_DATA__").First())
	if blob == "" {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(blob)))
	dec.UseNumber()
	value, found, err := findKey(dec, target.Key, target.accept)
	if err != nil {
		return nil, false
	}
	return value, found
}

// findKey walks the JSON value at the decoder's position and returns the first value
// stored under a property named `key` that `accept` takes. Properties are visited in
// the order they appear in the document, descending into a value before moving on to
// its next sibling.
func findKey(dec *json.Decoder, key string, accept func(any) (any, bool)) (any, bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, false, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, false, nil
	}

	switch delim {
	case '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, false, err
			}
			if name, _ := keyTok.(string); name == key {
				var value any
				err = dec.Decode(&value)
				if err != nil {
					return nil, false, err
				}
				if accepted, ok := accept(value); ok {
					return accepted, true, nil
				}
				continue
			}
			value, found, err := findKey(dec, key, accept)
			if err != nil || found {
				return value, found, err
			}
		}
	case '[':
		for dec.More() {
			value, found, err := findKey(dec, key, accept)
			if err != nil || found {
				return value, found, err
			}
		}
	}

	// closing delimiter
	_, err = dec.Token()
	if err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

// keyScanStrategy looks for `"<key>": {` or `"<key>": [` anywhere in the raw html, for
// pages that embed their state in some other script.
type keyScanStrategy struct{}

func (keyScanStrategy) name() string {
	return "key-scan"
}

func (keyScanStrategy) attempt(p page, target Target) (any, bool) {
	pattern := regexp.MustCompile(`"` + regexp.QuoteMeta(target.Key) + `"\s*:\s*[\[{]`)
	for _, loc := range pattern.FindAllIndex(p.raw, -1) {
		// decode exactly one balanced value starting at the opening bracket
		start := loc[1] - 1
		dec := json.NewDecoder(bytes.NewReader(p.raw[start:]))
		dec.UseNumber()

		var value any
		err := dec.Decode(&value)
		if err != nil {
			continue
		}
		if accepted, ok := target.accept(value); ok {
			return accepted, true
		}
	}
	return nil, false
}

// dataIslandStrategy reads a <script> dedicated to the target, ex. <script id="user-data">.
type dataIslandStrategy struct{}

func (dataIslandStrategy) name() string {
	return "data-island"
}

func (dataIslandStrategy) attempt(p page, target Target) (any, bool) {
	if p.doc == nil || target.Island == "" {
		return nil, false
	}
	text := htmlutil.RawText(p.doc.Find("script#" + target.Island).First())
	if text == "" {
		return nil, false
	}

	var value any
	err := decodeJSON([]byte(text), &value)
	if err != nil {
		return nil, false
	}
	return target.accept(value)
}
