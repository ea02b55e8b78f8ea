package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"
	"golang.org/x/time/rate"

	"github.com/cppvulnimpact/engine/internal/cpe"
	"github.com/cppvulnimpact/engine/internal/derrors"
)

// DefaultBaseURL is the public NVD CVE API v2.0 endpoint (§6).
const DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// DefaultTimeout is the per-request timeout specified in §5.
const DefaultTimeout = 15 * time.Second

const resultsPerPage = 50

// intervalNoKey and intervalWithKey are the minimum spacing between
// outbound requests, without and with an API key respectively (§4.C).
const (
	intervalNoKey   = 6000 * time.Millisecond
	intervalWithKey = 600 * time.Millisecond
)

// Client is a rate-limited, single-writer client for the NVD CVE API. A
// Client is reused across every query in one analysis run (§4.C).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Logger

	mu      sync.Mutex // serializes limiter.Wait + request issuance
	limiter *rate.Limiter
}

// NewClient builds a Client. logger receives one line per failed query
// (§7); a nil logger discards them.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	interval := intervalNoKey
	if apiKey != "" {
		interval = intervalWithKey
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
	}
}

// SetRateLimitForTest overrides the client's outbound rate limit. Exposed
// for tests that would otherwise pay the real 6s/0.6s interval.
func (c *Client) SetRateLimitForTest(limit rate.Limit) {
	c.limiter.SetLimit(limit)
}

// Search queries the NVD API by (vendor, product) keywords and returns the
// CVE records from the response that are actually affected by (vendor,
// product, version), per §4.B/§4.C. Network, timeout, and non-2xx failures
// are logged and yield an empty, non-error result — the pipeline keeps
// running (§7).
func (c *Client) Search(ctx context.Context, vendor, product, concreteVersion string) (_ []cpe.CVERecord, err error) {
	defer derrors.Wrap(&err, "nvd.Client.Search(%q, %q)", vendor, product)

	c.mu.Lock()
	defer c.mu.Unlock()
	if waitErr := c.limiter.Wait(ctx); waitErr != nil {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	keyword := product
	if vendor != "" {
		keyword = vendor + " " + product
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("keywordSearch", keyword)
	q.Set("resultsPerPage", strconv.Itoa(resultsPerPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		c.logger.Printf("nvd: query %q failed: %v", keyword, doErr)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("nvd: query %q returned status %d", keyword, resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Printf("nvd: query %q: reading response: %v", keyword, err)
		return nil, nil
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.Printf("nvd: query %q: decoding response: %v", keyword, err)
		return nil, nil
	}

	all := normalize(raw)
	query := cpe.Query{Vendor: vendor, Product: product, Version: normalizeDependencyVersion(concreteVersion)}
	var matched []cpe.CVERecord
	for _, rec := range all {
		if ok, _ := cpe.Matches(rec, query); ok {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// normalizeDependencyVersion strips a VCS-tag-shaped "v" prefix (e.g.
// "v1.2.3", the shape go-vcs dependency tags take) ahead of PEP440 range
// evaluation, using golang.org/x/mod/semver to recognize and canonicalize
// the tag. Versions that aren't semver-tag-shaped pass through unchanged;
// 4.A's own parser handles PEP440 proper.
func normalizeDependencyVersion(v string) string {
	if semver.IsValid(v) {
		return strings.TrimPrefix(semver.Canonical(v), "v")
	}
	if semver.IsValid("v" + v) {
		return strings.TrimPrefix(semver.Canonical("v"+v), "v")
	}
	return v
}

// CheckDependency runs Search for dep and packages the result as a
// VulnerabilityResult. checkedAt is supplied by the caller (the
// orchestrator owns the run's clock, per §4.G) rather than read from
// time.Now() here, keeping this function a pure function of its arguments
// plus network I/O.
func (c *Client) CheckDependency(ctx context.Context, dep Dependency, checkedAt time.Time) (*VulnerabilityResult, error) {
	records, err := c.Search(ctx, dep.Vendor, dep.Name, dep.Version)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	result := &VulnerabilityResult{
		LibraryName: dep.Name,
		Version:     dep.Version,
		CheckedAt:   checkedAt,
	}
	for _, rec := range records {
		result.CVEs = append(result.CVEs, CVESummary{
			ID:          rec.ID,
			Description: rec.Description,
			CVSSScore:   rec.CVSSScore,
			Severity:    string(rec.Severity),
			PublishedAt: rec.PublishedDate,
		})
	}
	return result, nil
}

// --- NVD API v2.0 response shapes and normalization ---

type rawResponse struct {
	Vulnerabilities []rawVulnerability `json:"vulnerabilities"`
}

type rawVulnerability struct {
	CVE rawCVE `json:"cve"`
}

type rawCVE struct {
	ID             string           `json:"id"`
	Descriptions   []rawDescription `json:"descriptions"`
	Published      string           `json:"published"`
	Metrics        rawMetrics       `json:"metrics"`
	Configurations []rawConfig      `json:"configurations"`
}

type rawDescription struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type rawMetrics struct {
	CVSSMetricV31 []rawCVSSMetric `json:"cvssMetricV31"`
	CVSSMetricV30 []rawCVSSMetric `json:"cvssMetricV30"`
	CVSSMetricV2  []rawCVSSMetric `json:"cvssMetricV2"`
}

type rawCVSSMetric struct {
	CVSSData     rawCVSSData `json:"cvssData"`
	BaseSeverity string      `json:"baseSeverity"`
}

type rawCVSSData struct {
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
}

type rawConfig struct {
	Nodes []rawNode `json:"nodes"`
}

type rawNode struct {
	CPEMatch []rawCPEMatch `json:"cpeMatch"`
}

type rawCPEMatch struct {
	Vulnerable            bool   `json:"vulnerable"`
	Criteria              string `json:"criteria"`
	VersionStartIncluding string `json:"versionStartIncluding"`
	VersionStartExcluding string `json:"versionStartExcluding"`
	VersionEndIncluding   string `json:"versionEndIncluding"`
	VersionEndExcluding   string `json:"versionEndExcluding"`
}

// normalize converts the raw NVD API response into the internal CVE Record
// model (§3), deriving Severity per the banding rule when only a numeric
// score is present.
func normalize(raw rawResponse) []cpe.CVERecord {
	records := make([]cpe.CVERecord, 0, len(raw.Vulnerabilities))
	for _, v := range raw.Vulnerabilities {
		records = append(records, normalizeOne(v.CVE))
	}
	return records
}

func normalizeOne(c rawCVE) cpe.CVERecord {
	rec := cpe.CVERecord{ID: c.ID}
	for _, d := range c.Descriptions {
		if d.Lang == "en" || d.Lang == "" {
			rec.Description = d.Value
			break
		}
	}
	if rec.Description == "" && len(c.Descriptions) > 0 {
		rec.Description = c.Descriptions[0].Value
	}

	if t, err := parseNVDTime(c.Published); err == nil {
		rec.PublishedDate = &t
	}

	rec.CVSSScore, rec.Severity = deriveSeverity(c.Metrics)

	for _, cfg := range c.Configurations {
		for _, node := range cfg.Nodes {
			for _, m := range node.CPEMatch {
				rec.CPEMatches = append(rec.CPEMatches, cpe.CPEMatchEntry{
					URI:            m.Criteria,
					Vulnerable:     m.Vulnerable,
					StartIncluding: m.VersionStartIncluding,
					StartExcluding: m.VersionStartExcluding,
					EndIncluding:   m.VersionEndIncluding,
					EndExcluding:   m.VersionEndExcluding,
				})
			}
		}
	}
	return rec
}

// deriveSeverity picks the highest-version CVSS metric available (v3.1,
// then v3.0, then v2) and derives a score/severity pair from it. For a v3.x
// metric a present baseSeverity string is trusted as-is, otherwise the
// numeric score is banded per §3; a v2 metric is always banded from its
// numeric score.
func deriveSeverity(m rawMetrics) (*float64, cpe.Severity) {
	for _, group := range [][]rawCVSSMetric{m.CVSSMetricV31, m.CVSSMetricV30} {
		if len(group) == 0 {
			continue
		}
		score := group[0].CVSSData.BaseScore
		sev := group[0].CVSSData.BaseSeverity
		if sev == "" {
			sev = group[0].BaseSeverity
		}
		if sev == "" {
			return &score, cpe.BandFromScore(score)
		}
		return &score, cpe.Severity(strings.ToUpper(sev))
	}
	if len(m.CVSSMetricV2) > 0 {
		score := m.CVSSMetricV2[0].CVSSData.BaseScore
		return &score, cpe.BandFromScore(score)
	}
	return nil, cpe.SeverityUnknown
}

// nvdTimeLayouts are the timestamp formats the NVD API has been observed
// to emit for the "published" field.
var nvdTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func parseNVDTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("nvd: empty timestamp")
	}
	var lastErr error
	for _, layout := range nvdTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
