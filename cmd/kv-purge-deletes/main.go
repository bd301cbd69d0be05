/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command kv-purge-deletes is a standalone maintenance tool that sweeps
// tombstones (DEL/PURGE markers) out of one or more KV buckets on a
// schedule, independent of any long-running service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/natskv/pkg/kv"
)

type sweepConfig struct {
	natsURL         string
	natsUser        string
	natsPass        string
	natsCreds       string
	natsNKey        string
	natsTLSCert     string
	natsTLSKey      string
	natsTLSCA       string
	natsInsecureTLS bool

	jsDomain string
	buckets  string
	olderThan time.Duration
	dryRun   bool
	reportPath string
	timeout  time.Duration
}

type bucketResult struct {
	Bucket  string `json:"bucket"`
	Purged  bool   `json:"purged"`
	Error   string `json:"error,omitempty"`
}

func main() {
	cfg := parseFlags()

	if err := run(cfg); err != nil {
		log.Fatalf("kv-purge-deletes: %v", err)
	}
}

func parseFlags() sweepConfig {
	var cfg sweepConfig

	flag.StringVar(&cfg.natsURL, "nats-url", getenvDefault("NATS_URL", nats.DefaultURL), "NATS server URL")
	flag.StringVar(&cfg.natsUser, "nats-user", getenvDefault("NATS_USER", ""), "NATS username")
	flag.StringVar(&cfg.natsPass, "nats-pass", getenvDefault("NATS_PASS", ""), "NATS password")
	flag.StringVar(&cfg.natsCreds, "nats-creds", getenvDefault("NATS_CREDS", ""), "Path to a NATS credentials file")
	flag.StringVar(&cfg.natsNKey, "nats-nkey-seed", getenvDefault("NATS_NKEY_SEED", ""), "NATS nkey seed")
	flag.StringVar(&cfg.natsTLSCert, "nats-tls-cert", getenvDefault("NATS_TLS_CERT", ""), "Client TLS certificate path")
	flag.StringVar(&cfg.natsTLSKey, "nats-tls-key", getenvDefault("NATS_TLS_KEY", ""), "Client TLS key path")
	flag.StringVar(&cfg.natsTLSCA, "nats-tls-ca", getenvDefault("NATS_TLS_CA", ""), "CA bundle path")
	flag.BoolVar(&cfg.natsInsecureTLS, "nats-insecure-tls", false, "Skip TLS certificate verification")

	flag.StringVar(&cfg.jsDomain, "js-domain", getenvDefault("NATS_JS_DOMAIN", ""), "JetStream domain")
	flag.StringVar(&cfg.buckets, "buckets", "", "Comma-separated bucket names to sweep (default: all KV buckets)")
	flag.DurationVar(&cfg.olderThan, "older-than", 30*time.Minute, "Only purge tombstones older than this; 0 means unconditional")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "Log which buckets would be swept without purging")
	flag.StringVar(&cfg.reportPath, "report", "", "Write a JSON summary of the sweep to this path")
	flag.DurationVar(&cfg.timeout, "timeout", 2*time.Minute, "Overall sweep timeout")

	flag.Parse()

	return cfg
}

func run(cfg sweepConfig) error {
	nc, err := connectNATS(cfg)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Drain()

	js, err := kv.NewJetStreamContext(nc, cfg.jsDomain, "")
	if err != nil {
		return fmt.Errorf("init JetStream: %w", err)
	}

	mgr := kv.NewManager(js)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	buckets, err := targetBuckets(ctx, mgr, cfg.buckets)
	if err != nil {
		return err
	}

	results := make([]bucketResult, 0, len(buckets))

	for _, bucket := range buckets {
		res := bucketResult{Bucket: bucket}

		if cfg.dryRun {
			log.Printf("dry-run: would sweep tombstones older than %s from bucket %q", cfg.olderThan, bucket)
			res.Purged = false
		} else if err := sweepBucket(ctx, mgr, bucket, cfg.olderThan); err != nil {
			res.Error = err.Error()
			log.Printf("sweep %q: %v", bucket, err)
		} else {
			res.Purged = true
			log.Printf("swept tombstones from bucket %q", bucket)
		}

		results = append(results, res)
	}

	if cfg.reportPath != "" {
		if err := writeJSON(cfg.reportPath, results); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	for _, res := range results {
		if res.Error != "" {
			return fmt.Errorf("sweep completed with errors")
		}
	}

	return nil
}

func targetBuckets(ctx context.Context, mgr *kv.Manager, requested string) ([]string, error) {
	if requested != "" {
		return strings.Split(requested, ","), nil
	}

	return mgr.ListBuckets(ctx)
}

func sweepBucket(ctx context.Context, mgr *kv.Manager, bucket string, olderThan time.Duration) error {
	store, err := mgr.KeyValue(ctx, bucket)
	if err != nil {
		return err
	}

	threshold := olderThan
	if threshold == 0 {
		threshold = -1
	}

	return store.PurgeDeletes(ctx, kv.WithPurgeDeletesThreshold(threshold))
}

func connectNATS(cfg sweepConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("natskv-purge-deletes"),
		nats.Timeout(10 * time.Second),
	}

	if cfg.natsUser != "" {
		opts = append(opts, nats.UserInfo(cfg.natsUser, cfg.natsPass))
	}

	if cfg.natsCreds != "" {
		opts = append(opts, nats.UserCredentials(cfg.natsCreds))
	}

	if cfg.natsNKey != "" {
		opt, err := nats.NkeyOptionFromSeed(cfg.natsNKey)
		if err != nil {
			return nil, fmt.Errorf("load NATS nkey seed: %w", err)
		}

		opts = append(opts, opt)
	}

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		opts = append(opts, nats.Secure(tlsConfig))
	}

	return nats.Connect(cfg.natsURL, opts...)
}

func buildTLSConfig(cfg sweepConfig) (*tls.Config, error) {
	if cfg.natsTLSCert == "" && cfg.natsTLSKey == "" && cfg.natsTLSCA == "" && !cfg.natsInsecureTLS {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.natsInsecureTLS {
		tlsConfig.InsecureSkipVerify = true
	}

	if cfg.natsTLSCA != "" {
		caCert, err := os.ReadFile(cfg.natsTLSCA)
		if err != nil {
			return nil, fmt.Errorf("read NATS CA file: %w", err)
		}

		cp := x509.NewCertPool()
		cp.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = cp
	}

	if cfg.natsTLSCert != "" && cfg.natsTLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.natsTLSCert, cfg.natsTLSKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}

		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func getenvDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}
