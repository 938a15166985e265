package scraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

func TestPointFetch_SalesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sales/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "mike trout 2023", r.PostForm.Get("query"))
		assert.Equal(t, "2", r.PostForm.Get("type"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"sales":[
			{"title":"2023 Topps Chrome Mike Trout #1","salePrice":"$100.00","saleDate":"05/01/2025","link":"https://130point.com/sale/111"},
			{"title":"2023 Topps Chrome Mike Trout #1 PSA 10","salePrice":"$350.00","saleDate":"05/02/2025","link":"https://130point.com/sale/222"}
		]}`)
	}))
	defer server.Close()

	scraper := NewPointScraper(server.URL, 0, time.Second, false)
	result := scraper.Fetch(testContext(t), "mike trout 2023")

	require.Nil(t, result.Err)
	require.Len(t, result.Listings, 2)
	assert.Equal(t, domain.SourcePoint, result.Source)
	assert.Equal(t, "$350.00", result.Listings[1].Price)
	assert.Equal(t, "https://130point.com/sale/111", result.Listings[0].URL)
}

func TestPointFetch_TableFallback(t *testing.T) {
	row := func(n int) string {
		return fmt.Sprintf(`<tr>
			<td><a href="https://130point.com/sale/%d">2023 Topps Chrome Mike Trout #1 copy %d</a></td>
			<td>$1%d0.00</td>
			<td>05/0%d/2025</td>
		</tr>`, n, n, n, n)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			// JSON endpoint decodes to nothing, pushing the ladder to markup.
			fmt.Fprint(w, `{}`)
			return
		}
		assert.Equal(t, "mike trout 2023", r.URL.Query().Get("query"))
		fmt.Fprintf(w, `<html><body><table>%s%s%s</table></body></html>`, row(1), row(2), row(3))
	}))
	defer server.Close()

	scraper := NewPointScraper(server.URL, 0, time.Second, false)
	result := scraper.Fetch(testContext(t), "mike trout 2023")

	require.Nil(t, result.Err)
	require.Len(t, result.Listings, 3)
	assert.Equal(t, "2023 Topps Chrome Mike Trout #1 copy 1", result.Listings[0].Title)
	assert.Equal(t, "$110.00", result.Listings[0].Price)
	assert.Equal(t, "05/01/2025", result.Listings[0].Date)
}

func TestPointFetch_RowsWithoutLinksAreSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `<html><body><table>
			<tr><td>2023 Topps Chrome Mike Trout #1 headline row</td><td>$100.00</td></tr>
			<tr><td>2023 Topps Chrome Mike Trout #1 another</td><td>$120.00</td></tr>
			<tr><td>2023 Topps Chrome Mike Trout #1 third</td><td>$140.00</td></tr>
		</table></body></html>`)
	}))
	defer server.Close()

	scraper := NewPointScraper(server.URL, 0, time.Second, false)
	result := scraper.Fetch(testContext(t), "mike trout 2023")

	assert.Empty(t, result.Listings, "rows with no listing link should never be synthesized into comps")
	assert.Nil(t, result.Err)
}

func TestPointFetch_AllStrategiesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	scraper := NewPointScraper(server.URL, 0, 200*time.Millisecond, false)
	result := scraper.Fetch(testContext(t), "mike trout 2023")

	assert.Empty(t, result.Listings)
	require.NotNil(t, result.Err)
	assert.Equal(t, domain.SourcePoint, result.Err.Source)
}
