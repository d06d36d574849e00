package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

const (
	defaultAPI = "http://localhost:8080"
)

type versionRow struct {
	ID            string    `json:"id"`
	ComponentName string    `json:"componentName"`
	Version       string    `json:"version"`
	Status        string    `json:"status"`
	BumpType      string    `json:"bumpType"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

type auditRow struct {
	Action      string    `json:"action"`
	PerformedBy string    `json:"performedBy"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"createdAt"`
}

func main() {
	api := flag.String("api", envDefault("COMPVS_API", defaultAPI), "Base URL of the comp-vs REST API")
	componentKey := flag.String("component", "", "Component key to list versions for")
	auditID := flag.String("audit", "", "Version id to show the audit trail for")
	limit := flag.Int("limit", 0, "Maximum versions to list (0 means all)")
	dumpJSON := flag.Bool("json", false, "Output JSON instead of table")
	flag.Parse()

	base := strings.TrimRight(*api, "/")

	switch {
	case *auditID != "":
		showAudit(base, *auditID, *dumpJSON)
	case *componentKey != "":
		showVersions(base, *componentKey, *limit, *dumpJSON)
	default:
		fmt.Fprintln(os.Stderr, "one of --component or --audit is required")
		os.Exit(1)
	}
}

func showVersions(base, componentKey string, limit int, dumpJSON bool) {
	query := url.Values{"componentKey": {componentKey}}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}

	var versions []versionRow
	fetch(fmt.Sprintf("%s/api/v1/versions?%s", base, query.Encode()), &versions)

	if dumpJSON {
		dump(versions)
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Version\tStatus\tBump\tCreatedBy\tCreatedAt\tID\n")
	for _, v := range versions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Version, v.Status, v.BumpType, v.CreatedBy, v.CreatedAt.Format(time.RFC3339), v.ID)
	}
	_ = tw.Flush()
}

func showAudit(base, versionID string, dumpJSON bool) {
	var entries []auditRow
	fetch(fmt.Sprintf("%s/api/v1/versions/%s/audit", base, url.PathEscape(versionID)), &entries)

	if dumpJSON {
		dump(entries)
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Action\tPerformedBy\tAt\tNote\n")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			entry.Action, entry.PerformedBy, entry.CreatedAt.Format(time.RFC3339), entry.Note)
	}
	_ = tw.Flush()
}

func fetch(endpoint string, dst any) {
	resp, err := http.Get(endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "query failed: %s\n", resp.Status)
		os.Exit(1)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
		os.Exit(1)
	}
}

func dump(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
