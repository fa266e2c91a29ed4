package sunvoy

import (
	"strings"
	"sunvoy-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// containers that usually wrap the logged in user's profile, first one found wins
var profileSelectors = []string{
	".user-profile",
	".profile-container",
	".user-info",
	"#user-profile",
	"#profile",
}

// one user per matched element, groups are read in this order
var userRowSelectors = []string{
	"table.user-table tbody > tr, table.users tbody > tr",
	"ul.user-list li, ol.user-list li, .user-list li",
	".user-card, .card-user",
}

func isUserField(name string) bool {
	for _, f := range userFields {
		if f == name {
			return true
		}
	}
	return false
}

func dataAttr(field string) string {
	return "data-user-" + field
}

func attrValue(sel *goquery.Selection, attr string) string {
	return strings.TrimSpace(sel.AttrOr(attr, ""))
}

// fieldValue reads a field from the first element under `scope` carrying either
// data-user-<field> (its value, or its text if the value is empty) or class user-<field>.
func fieldValue(scope *goquery.Selection, field string) string {
	attr := dataAttr(field)
	el := scope.Find("[" + attr + "], .user-" + field).First()
	if el.Length() == 0 {
		return ""
	}
	if v := attrValue(el, attr); v != "" {
		return v
	}
	return htmlutil.Text(el)
}

func hasID(user RawUser) bool {
	return truthy(user["id"])
}

// markupStrategy recovers users from conventional markup when the page carries
// no json at all.
type markupStrategy struct{}

func (markupStrategy) name() string {
	return "markup"
}

func (markupStrategy) attempt(p page, target Target) (any, bool) {
	if p.doc == nil {
		return nil, false
	}
	if target.Plural {
		users := scrapeUserRows(p.doc.Selection)
		if len(users) == 0 {
			return nil, false
		}
		return users, true
	}

	user := scrapeCurrentUser(p.doc)
	if user == nil {
		return nil, false
	}
	return user, true
}

// scrapeCurrentUser fills a single record from progressively more generic markup,
// stopping as soon as an id is known.
func scrapeCurrentUser(doc *goquery.Document) RawUser {
	user := RawUser{}

	// <meta name="user.email" content="...">
	for _, f := range userFields {
		v := attrValue(doc.Find(`meta[name="user.`+f+`"]`).First(), "content")
		if v != "" {
			user[f] = v
		}
	}
	if hasID(user) {
		return user
	}

	// <input type="hidden" name="email" value="...">
	doc.Find(`input[type="hidden"]`).Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		v := attrValue(input, "value")
		if isUserField(name) && v != "" {
			user[name] = v
		}
	})
	if hasID(user) {
		return user
	}

	for _, sel := range profileSelectors {
		profile := doc.Find(sel).First()
		if profile.Length() == 0 {
			continue
		}
		readProfile(profile, user)
		break
	}
	if hasID(user) {
		return user
	}

	for _, f := range userFields {
		if _, ok := user[f]; ok {
			continue
		}
		if v := fieldValue(doc.Selection, f); v != "" {
			user[f] = v
		}
	}
	if hasID(user) {
		return user
	}
	return nil
}

// readProfile reads fields off a profile container: its own data-user-<field>
// attribute, then a nested [data-user-<field>] element, then a nested .user-<field>.
func readProfile(profile *goquery.Selection, user RawUser) {
	for _, f := range userFields {
		attr := dataAttr(f)
		if v := attrValue(profile, attr); v != "" {
			user[f] = v
			continue
		}

		el := profile.Find("[" + attr + "]").First()
		if el.Length() > 0 {
			v := attrValue(el, attr)
			if v == "" {
				v = htmlutil.Text(el)
			}
			if v != "" {
				user[f] = v
			}
			continue
		}

		if v := htmlutil.Text(profile.Find(".user-" + f).First()); v != "" {
			user[f] = v
		}
	}
}

// scrapeUserRows builds one record per table row, list item or card. Elements
// matched by more than one selector are only read once and rows without an id are
// skipped.
func scrapeUserRows(root *goquery.Selection) []RawUser {
	seen := map[*html.Node]bool{}
	var users []RawUser

	for _, sel := range userRowSelectors {
		root.Find(sel).Each(func(_ int, row *goquery.Selection) {
			node := row.Get(0)
			if seen[node] {
				return
			}
			seen[node] = true

			user := RawUser{}
			for _, f := range userFields {
				v := attrValue(row, dataAttr(f))
				if v == "" {
					v = fieldValue(row, f)
				}
				if v != "" {
					user[f] = v
				}
			}
			if !hasID(user) {
				return
			}
			users = append(users, user)
		})
	}

	return users
}
