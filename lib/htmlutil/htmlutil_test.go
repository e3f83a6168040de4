package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div>
			<a href="/boardgame/13/catan">  Catan
				 </a>
			<a>no href</a>
			<a href="/boardgameexpansion/926/catan-seafarers"><b>Catan:</b>   Seafarers</a>
		</div>`))
	require.NoError(t, err)

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "Catan", Href: "/boardgame/13/catan"},
		{Name: "Catan: Seafarers", Href: "/boardgameexpansion/926/catan-seafarers"},
	}, anchors)
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b", CleanText("\n\t a \u0007  b \n"))
}
