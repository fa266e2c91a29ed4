package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div class="name">
			Ann
			<b>  Lee </b>
		</div>
		<script id="blob">{ "a" :  1 }</script>
	`))
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, "Ann Lee", Text(doc.Find(".name")))
	require.Equal(t, "", Text(doc.Find(".missing")))
	require.Equal(t, `{ "a" :  1 }`, RawText(doc.Find("#blob")))
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "  plain  ", expected: "plain"},
		{in: "a\n\n\tb", expected: "a b"},
		{in: "x\u0000y", expected: "xy"},
		{in: "", expected: ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, Normalize(test.in), test.in)
	}
}
