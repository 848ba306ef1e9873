// Command bench floods a running ocrflowd with synthetic submissions and
// waits for the queue to drain, reporting end-to-end throughput.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danwin47-sys/ocrflow/ocr"
)

type benchConfig struct {
	addr        string
	jobs        int
	concurrency int
	mode        string
	priority    string
	correct     bool
	side        int
}

func main() {
	cfg := parseFlags()

	client := &http.Client{Timeout: 30 * time.Second}
	if err := checkHealthy(client, cfg.addr); err != nil {
		log.Fatalf("service not healthy: %v", err)
	}

	log.Printf("Starting benchmark: jobs=%d mode=%s priority=%s concurrency=%d correct=%v",
		cfg.jobs, cfg.mode, cfg.priority, cfg.concurrency, cfg.correct)

	start := time.Now()
	jobIDs := submitJobs(client, cfg)
	submitted := time.Since(start)

	waitForDrain(client, cfg.addr, jobIDs)
	total := time.Since(start)

	log.Printf("Benchmark complete: %d jobs submitted in %v, drained in %v (%.1f jobs/s)",
		len(jobIDs), submitted, total, float64(len(jobIDs))/total.Seconds())
}

func parseFlags() benchConfig {
	cfg := benchConfig{}
	flag.StringVar(&cfg.addr, "addr", envOr("OCRFLOW_ADDR", "http://localhost:8080"), "service base URL")
	flag.IntVar(&cfg.jobs, "jobs", envInt("BENCH_JOBS", 100), "number of jobs")
	flag.IntVar(&cfg.concurrency, "concurrency", envInt("BENCH_CONCURRENCY", 10), "submit workers")
	flag.StringVar(&cfg.mode, "mode", envOr("BENCH_MODE", "basic"), "recognition mode")
	flag.StringVar(&cfg.priority, "priority", envOr("BENCH_PRIORITY", "normal"), "job priority")
	flag.BoolVar(&cfg.correct, "correct", envBool("BENCH_CORRECT", false), "request the correction pass")
	flag.IntVar(&cfg.side, "side", envInt("BENCH_SIDE", 64), "synthetic image side in pixels")
	flag.Parse()

	if !ocr.ValidMode(cfg.mode) {
		log.Fatalf("mode must be one of %v", ocr.Modes())
	}
	if !strings.Contains(cfg.addr, "://") {
		cfg.addr = "http://" + cfg.addr
	}
	cfg.addr = strings.TrimRight(cfg.addr, "/")
	return cfg
}

func checkHealthy(client *http.Client, addr string) error {
	resp, err := client.Get(addr + "/healthz")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz returned %d", resp.StatusCode)
	}
	return nil
}

func submitJobs(client *http.Client, cfg benchConfig) []string {
	jobIDs := make([]string, cfg.jobs)
	workCh := make(chan int)
	wg := sync.WaitGroup{}
	wg.Add(cfg.concurrency)

	for i := 0; i < cfg.concurrency; i++ {
		go func() {
			defer wg.Done()
			for idx := range workCh {
				id, err := submitOne(client, cfg, idx)
				if err != nil {
					log.Printf("submit %d failed: %v", idx, err)
					continue
				}
				jobIDs[idx] = id
			}
		}()
	}

	for i := 0; i < cfg.jobs; i++ {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	kept := jobIDs[:0]
	for _, id := range jobIDs {
		if id != "" {
			kept = append(kept, id)
		}
	}
	return kept
}

func submitOne(client *http.Client, cfg benchConfig, seq int) (string, error) {
	img, err := syntheticPNG(cfg.side, seq)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]interface{}{
		"image":    base64.StdEncoding.EncodeToString(img),
		"mode":     cfg.mode,
		"priority": cfg.priority,
		"correct":  cfg.correct,
	})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(cfg.addr+"/api/v1/jobs", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("rate limited, raise the daemon's -rate-limit for benching")
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var body struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.JobID, nil
}

// syntheticPNG renders a gradient tile perturbed by seq so every submission
// has a distinct fingerprint and cannot be served from the result cache.
func syntheticPNG(side, seq int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x ^ seq),
				G: uint8(y ^ (seq >> 8)),
				B: uint8(x + y + seq),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func waitForDrain(client *http.Client, addr string, jobIDs []string) {
	target := map[string]struct{}{}
	for _, id := range jobIDs {
		target[id] = struct{}{}
	}

	var completed, failed int
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for len(target) > 0 {
		<-ticker.C
		for id := range target {
			status, err := jobStatus(client, addr, id)
			if err != nil {
				log.Printf("status %s failed: %v", id, err)
				continue
			}
			switch status {
			case "completed":
				completed++
				delete(target, id)
			case "failed":
				failed++
				delete(target, id)
			}
		}
		log.Printf("Remaining %d; completed=%d failed=%d", len(target), completed, failed)
	}
}

func jobStatus(client *http.Client, addr, id string) (string, error) {
	resp, err := client.Get(addr + "/api/v1/jobs/" + id)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Status, nil
}

// util helpers
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
