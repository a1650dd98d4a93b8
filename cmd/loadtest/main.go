// Command loadtest drives the search service with a fixed query mix and
// reports latency percentiles, status codes and the cache hit ratio.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// query is one line of the mix. Lines prefixed with "boolean:" run in
// boolean mode; everything else is ranked.
type query struct {
	text string
	mode string
}

var defaultQueries = []query{
	{"computer programming languages", "vector"},
	{"matrix inversion algorithm", "vector"},
	{"parallel processing systems", "vector"},
	{"information retrieval", "vector"},
	{"compiler optimization", "vector"},
	{"sorting && searching", "boolean"},
	{"algorithm && !fortran", "boolean"},
	{"(list || tree) && storage", "boolean"},
	{"operating || system", "boolean"},
}

type stats struct {
	total     atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *stats) record(d time.Duration, resp *http.Response, err error) {
	s.total.Add(1)
	if err != nil {
		s.failures.Add(1)
		return
	}
	if resp.StatusCode != http.StatusOK {
		s.failures.Add(1)
	}
	if resp.Header.Get("X-Cache") == "HIT" {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[resp.StatusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "results per query")
	weight := flag.String("weight", "", "weighting scheme for ranked queries")
	queryFile := flag.String("queries", "", "file with one query per line (boolean: prefix for boolean mode)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		var err error
		if queries, err = readQueries(*queryFile); err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("=== BSBI Search Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Queries:     %d unique\n", len(queries))
	fmt.Println()

	s := run(*baseURL, *concurrency, *duration, queries, *limit, *weight)
	if !report(s, *duration) {
		os.Exit(1)
	}
}

func readQueries(path string) ([]query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []query
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "boolean:"); ok {
			out = append(out, query{strings.TrimSpace(rest), "boolean"})
			continue
		}
		out = append(out, query{line, "vector"})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return out, nil
}

func searchURL(base string, q query, limit int, weight string) string {
	v := url.Values{}
	v.Set("q", q.text)
	v.Set("mode", q.mode)
	v.Set("limit", strconv.Itoa(limit))
	if weight != "" && q.mode == "vector" {
		v.Set("weight", weight)
	}
	return base + "/api/v1/search?" + v.Encode()
}

func run(base string, concurrency int, d time.Duration, queries []query, limit int, weight string) *stats {
	s := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	urls := make([]string, len(queries))
	for i, q := range queries {
		urls[i] = searchURL(base, q, limit, weight)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, urls[next%len(urls)], nil)
				if err != nil {
					panic(fmt.Sprintf("creating request: %v", err))
				}
				next++

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						s.record(elapsed, nil, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(elapsed, resp, nil)
			}
		}(w)
	}
	wg.Wait()
	return s
}

// report prints the summary and returns false when nothing completed.
func report(s *stats, d time.Duration) bool {
	total := s.total.Load()
	failures := s.failures.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Failures:        %d\n", failures)
	if total > 0 {
		fmt.Printf("Failure Rate:    %.2f%%\n", float64(failures)/float64(total)*100)
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits.Load())/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/d.Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) > 0 {
		lat := slices.Clone(s.latencies)
		slices.Sort(lat)
		var sum time.Duration
		for _, l := range lat {
			sum += l
		}
		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", lat[0])
		fmt.Printf("Avg:    %s\n", sum/time.Duration(len(lat)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Printf("P%-5g %s\n", p, percentile(lat, p))
		}
		fmt.Printf("Max:    %s\n", lat[len(lat)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, s.codes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
