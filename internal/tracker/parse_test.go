package tracker

import (
	"bytes"
	"errors"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homepageFixture = `<html><body>
<h3>Server status</h3>
<table><tbody><tr><td>Decoy</td><td>beQuiet</td></tr></tbody></table>
<div>
  <h4>  <span>Nether</span>world players  </h4>
  <p>live</p>
</div>
<table class="players">
  <thead><tr><th>Name</th><th>Guild</th></tr></thead>
  <tbody>
    <tr><td> Alice </td><td>[beQuiet]</td></tr>
    <tr><td>bob</td><td>BEQUIET officers</td></tr>
    <tr><td>Mallory</td><td>Loud</td></tr>
    <tr><td></td><td>beQuiet</td></tr>
    <tr><td>Solo</td></tr>
    <tr><td>Nobody</td><td></td></tr>
  </tbody>
</table>
<h4>Netherworld rankings</h4>
<table><tbody><tr><td>Late</td><td>beQuiet</td></tr></tbody></table>
</body></html>`

func TestParseOnline(t *testing.T) {
	t.Parallel()

	names, err := ParseOnline([]byte(homepageFixture), "Netherworld", "beQuiet")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "bob"}, names)
}

func TestFindServerTableSkipsTablesWithoutBody(t *testing.T) {
	t.Parallel()

	const page = `<html><body>
<h5>Netherworld</h5>
<table></table>
<h6>NETHERWORLD online</h6>
<table><tr><td>Zed</td><td>beQuiet</td></tr></table>
</body></html>`
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(page)))
	require.NoError(t, err)

	table, err := FindServerTable(doc, "netherworld")
	require.NoError(t, err)
	assert.Equal(t, []string{"Zed"}, GuildMembers(table, "beQuiet"))
}

func TestFindServerTableNotFound(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no heading":      `<html><body><table><tbody><tr><td>a</td><td>b</td></tr></tbody></table></body></html>`,
		"h2 is ignored":   `<html><body><h2>Netherworld</h2><table><tbody><tr><td>a</td></tr></tbody></table></body></html>`,
		"table before h3": `<html><body><table><tbody><tr><td>a</td></tr></tbody></table><h3>Netherworld</h3></body></html>`,
		"empty page":      ``,
	}
	for name, page := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseOnline([]byte(page), "Netherworld", "beQuiet")
			if !errors.Is(err, ErrTableNotFound) {
				t.Fatalf("expected ErrTableNotFound, got %v", err)
			}
		})
	}
}
