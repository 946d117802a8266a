package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	fdhttp "github.com/kritzerenkrieg/FastDLX/internal/http"
	"github.com/kritzerenkrieg/FastDLX/internal/logging"
)

// ErrEmptyBody is returned when a listing page has an empty or
// whitespace-only body. A page with no anchors is not an error; a page with
// no body at all means the server misbehaved.
var ErrEmptyBody = errors.New("listing: empty directory listing body")

// Entry is one child of a remote directory, derived on the fly from an
// autoindex page. Never persisted.
type Entry struct {
	Name  string
	IsDir bool
	URL   string
}

// Crawler lists remote directories exposed as autoindex HTML pages.
type Crawler struct {
	client *fdhttp.Client
	log    *logging.Sink
}

// New creates a crawler using the given client. log may be nil.
func New(client *fdhttp.Client, log *logging.Sink) *Crawler {
	if log == nil {
		log = logging.New(nil)
	}
	return &Crawler{client: client, log: log}
}

// List fetches the autoindex page for dirURL (which must end with "/") and
// returns its immediate children. A zero-length result with a nil error is
// a legitimately empty directory.
func (c *Crawler) List(ctx context.Context, dirURL string) ([]Entry, error) {
	body, err := c.client.Get(ctx, dirURL)
	if err != nil {
		return nil, fmt.Errorf("listing: fetch %s: %w", dirURL, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("listing: read %s: %w", dirURL, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBody, dirURL)
	}

	return parseAnchors(dirURL, data)
}

// Count recursively tallies the files under dirURL. It exists only to seed
// the progress-percentage baseline, so every error is swallowed and the
// tally is best-effort. skipDir prunes subtrees by directory name; it may
// be nil.
func (c *Crawler) Count(ctx context.Context, dirURL string, skipDir func(name string) bool) int {
	if ctx.Err() != nil {
		return 0
	}

	entries, err := c.List(ctx, dirURL)
	if err != nil {
		return 0
	}

	n := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if !e.IsDir {
			n++
			continue
		}
		if skipDir != nil && skipDir(e.Name) {
			continue
		}
		n += c.Count(ctx, e.URL, skipDir)
	}
	return n
}

// parseAnchors extracts directory entries from an autoindex page. Every
// anchor href is an entry unless it is empty, whitespace, the parent link
// "../", a link that does not name an immediate child (sort links like
// "?C=M;O=A", absolute URLs, rooted paths), or one whose decoded name would
// traverse outside the directory.
func parseAnchors(dirURL string, page []byte) ([]Entry, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("listing: parse %s: %w", dirURL, err)
	}

	var entries []Entry
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if e, ok := entryFromHref(dirURL, attr.Val); ok {
					entries = append(entries, e)
				}
				break
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return entries, nil
}

func entryFromHref(dirURL, href string) (Entry, bool) {
	href = strings.TrimSpace(href)
	if href == "" || href == "../" {
		return Entry{}, false
	}
	// Only single-segment relative hrefs name immediate children.
	if strings.HasPrefix(href, "/") || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") {
		return Entry{}, false
	}
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() || ref.RawQuery != "" || ref.Fragment != "" {
		return Entry{}, false
	}

	isDir := strings.HasSuffix(href, "/")
	raw := strings.TrimSuffix(href, "/")
	if raw == "" || raw == ".." || strings.Contains(raw, "/") {
		return Entry{}, false
	}

	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}
	// The decoded name becomes a local path segment. Encoded dots or
	// separators ("%2e%2e", "a%2fb") must never escape the directory.
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return Entry{}, false
	}

	return Entry{
		Name:  name,
		IsDir: isDir,
		URL:   dirURL + href,
	}, true
}
