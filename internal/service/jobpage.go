package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/set-night/interviewcoach/internal/domain"
)

const (
	maxJobPageBytes     = 5 << 20
	maxJobPageRedirects = 5
)

var errBlockedAddress = errors.New("address is not public")

// sharedAddressSpace is carrier-grade NAT space, RFC 6598.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

var (
	spaceRun   = regexp.MustCompile(`[ \t\f\r]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Selectors tried in order for the posting body. The first two match hh.ru.
var (
	descriptionSelectors = []string{
		`[data-qa="vacancy-description"]`,
		`.vacancy-description`,
		`[itemprop="description"]`,
		`.job-description`,
		`article`,
		`main`,
	}
	titleSelectors = []string{
		`[data-qa="vacancy-title"]`,
		`h1`,
	}
	companySelectors = []string{
		`[data-qa="vacancy-company-name"]`,
		`[itemprop="hiringOrganization"]`,
		`.company-name`,
	}
)

// JobPage is a posting reduced to plain text.
type JobPage struct {
	URL     string `json:"url,omitempty"`
	Title   string `json:"title"`
	Company string `json:"company"`
	Text    string `json:"text"`
}

// JobPageFetcher downloads postings. By default it only connects to public
// addresses, checked after DNS resolution and again on every redirect.
type JobPageFetcher struct {
	httpClient   *http.Client
	allowPrivate bool
}

type FetcherOption func(*JobPageFetcher)

// WithPrivateNetworks lets the fetcher reach loopback and private
// addresses, e.g. a self-hosted job board.
func WithPrivateNetworks() FetcherOption {
	return func(f *JobPageFetcher) { f.allowPrivate = true }
}

func NewJobPageFetcher(opts ...FetcherOption) *JobPageFetcher {
	f := &JobPageFetcher{}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !f.allowPrivate {
		dialer.Control = publicOnly
	}
	f.httpClient = &http.Client{
		Timeout: 30 * time.Second,
		// No proxy: the dialer must see the real destination.
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: f.checkRedirect,
	}
	return f
}

func (f *JobPageFetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxJobPageRedirects {
		return fmt.Errorf("stopped after %d redirects", maxJobPageRedirects)
	}
	return f.checkURL(req.URL)
}

// checkURL rejects non-http schemes and literal non-public hosts. Names are
// checked by the dialer once resolved.
func (f *JobPageFetcher) checkURL(u *url.URL) error {
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.NewValidation("url must be an absolute http(s) address")
	}
	if f.allowPrivate {
		return nil
	}
	if ip, err := netip.ParseAddr(strings.Trim(u.Hostname(), "[]")); err == nil && !isPublic(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, ip)
	}
	return nil
}

// publicOnly is a net.Dialer Control hook. address is already resolved.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, host)
	}
	if !isPublic(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, ip)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// Fetch downloads a posting and extracts its text.
func (f *JobPageFetcher) Fetch(ctx context.Context, rawURL string) (*JobPage, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, domain.NewValidation("url must be an absolute http(s) address")
	}
	if err := f.checkURL(u); err != nil {
		return nil, blockedOr(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; interviewcoach/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedAddress) {
			return nil, blockedOr(err)
		}
		return nil, fmt.Errorf("fetch job page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.KindValidation, domain.CodeBadRequest,
			fmt.Sprintf("Не удалось загрузить вакансию (HTTP %d)", resp.StatusCode), nil)
	}

	page, err := ParseJobHTML(io.LimitReader(resp.Body, maxJobPageBytes))
	if err != nil {
		return nil, err
	}
	page.URL = u.String()
	return page, nil
}

func blockedOr(err error) error {
	if errors.Is(err, errBlockedAddress) {
		return domain.NewError(domain.KindValidation, domain.CodeValidation,
			"Адрес вакансии указывает на внутреннюю сеть", err)
	}
	return err
}

// ParseJobHTML extracts title, company and description from a posting.
func ParseJobHTML(r io.Reader) (*JobPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, header, form, iframe, svg").Remove()

	page := &JobPage{
		Title:   firstText(doc, titleSelectors),
		Company: firstText(doc, companySelectors),
	}
	if page.Title == "" {
		page.Title = cleanText(doc.Find("title").First().Text())
	}

	for _, sel := range descriptionSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if text := blockText(s); text != "" {
				page.Text = text
				break
			}
		}
	}
	if page.Text == "" {
		page.Text = blockText(doc.Find("body"))
	}
	if page.Text == "" {
		return nil, domain.NewValidation("page has no readable text")
	}
	return page, nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := cleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// blockText keeps paragraph and list structure as line breaks.
func blockText(s *goquery.Selection) string {
	s.Find("br").ReplaceWithHtml("\n")
	s.Find("p, li, h1, h2, h3, h4, div, tr").Each(func(_ int, el *goquery.Selection) {
		el.AppendHtml("\n")
	})
	s.Find("li").Each(func(_ int, el *goquery.Selection) {
		el.PrependHtml("• ")
	})
	return normalizeText(s.Text())
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
