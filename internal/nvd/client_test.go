package nvd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

const sampleResponse = `{
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2024-1111",
        "descriptions": [{"lang": "en", "value": "a curl vulnerability"}],
        "published": "2024-01-02T03:04:05.000",
        "metrics": {
          "cvssMetricV31": [{"cvssData": {"baseScore": 9.8, "baseSeverity": "CRITICAL"}}]
        },
        "configurations": [
          {
            "nodes": [
              {
                "cpeMatch": [
                  {
                    "vulnerable": true,
                    "criteria": "cpe:2.3:a:haxx:curl:*:*:*:*:*:*:*:*",
                    "versionStartIncluding": "7.0.0",
                    "versionEndExcluding": "8.0.0"
                  }
                ]
              }
            ]
          }
        ]
      }
    }
  ]
}`

func TestSearchFiltersByQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	// Lift the rate limit entirely, so the test's two requests don't wait
	// out the no-key interval.
	c.limiter.SetLimit(rate.Inf)

	records, err := c.Search(context.Background(), "haxx", "curl", "7.5.0")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 matching record, got %d", len(records))
	}
	if records[0].ID != "CVE-2024-1111" {
		t.Errorf("unexpected record id %q", records[0].ID)
	}
	if records[0].Severity != "CRITICAL" {
		t.Errorf("expected CRITICAL severity, got %q", records[0].Severity)
	}

	records, err = c.Search(context.Background(), "haxx", "curl", "8.5.0")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected out-of-range version to filter out the record, got %d", len(records))
	}
}

func TestSearchNonOKStatusIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second, nil)
	c.limiter.SetLimit(rate.Inf)

	records, err := c.Search(context.Background(), "", "curl", "1.0.0")
	if err != nil {
		t.Fatalf("Search should fail soft, got error: %v", err)
	}
	if records != nil {
		t.Errorf("expected nil records on failure, got %v", records)
	}
}
