package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// outputOptions controls how list commands render results. A JMESPath query
// implies JSON output so expressions always see the full document.
type outputOptions struct {
	JSON  bool
	Query string
}

func bindOutputFlags(fs *flag.FlagSet, opts *outputOptions) {
	fs.BoolVar(&opts.JSON, "json", false, "Print results as JSON instead of a table")
	fs.StringVar(&opts.Query, "query", "", "JMESPath expression applied to the JSON results (implies --json)")
}

func (o outputOptions) wantsJSON() bool {
	return o.JSON || o.Query != ""
}

// renderJSON writes v as indented JSON, optionally filtered through a
// JMESPath expression. The value round-trips through encoding/json so the
// expression operates on the same document a caller of the API would see.
func renderJSON(w io.Writer, v any, query string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode results: %w", err)
	}

	if query != "" {
		doc, err = jmespath.Search(query, doc)
		if err != nil {
			return fmt.Errorf("apply query %q: %w", query, err)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatCents(cents int) string {
	if cents == 0 {
		return "free"
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func formatRedisTTL(ttl time.Duration) string {
	if ttl == -1 {
		return "no expiry"
	}
	if ttl == -2 {
		return "missing"
	}
	if ttl < 0 {
		return ttl.String()
	}
	return ttl.Round(time.Millisecond).String()
}

func boolMark(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
