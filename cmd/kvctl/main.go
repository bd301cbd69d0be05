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

// Command kvctl is a thin CLI over pkg/kv for inspecting and mutating
// JetStream Key/Value buckets without writing Go code.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/natskv/pkg/kv"
	"github.com/carverauto/natskv/pkg/logger"
)

func main() {
	natsURL := flag.String("nats-url", getenvDefault("NATS_URL", nats.DefaultURL), "NATS server URL")
	natsCreds := flag.String("nats-creds", os.Getenv("NATS_CREDS"), "Path to a NATS credentials file")
	jsDomain := flag.String("js-domain", os.Getenv("NATS_JS_DOMAIN"), "JetStream domain (leaf-cluster deployments)")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-request timeout")
	flag.Usage = usage
	flag.Parse()

	if err := logger.Init(*logger.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	opts := []nats.Option{nats.Name("kvctl")}
	if *natsCreds != "" {
		opts = append(opts, nats.UserCredentials(*natsCreds))
	}

	nc, err := nats.Connect(*natsURL, opts...)
	if err != nil {
		fatalf("connect to NATS: %v", err)
	}
	defer nc.Drain()

	js, err := kv.NewJetStreamContext(nc, *jsDomain, "")
	if err != nil {
		fatalf("init JetStream: %v", err)
	}

	mgr := kv.NewManager(js)

	if err := dispatch(ctx, mgr, args[0], args[1:]); err != nil {
		fatalf("%v", err)
	}
}

func dispatch(ctx context.Context, mgr *kv.Manager, cmd string, args []string) error {
	switch cmd {
	case "create-bucket":
		return cmdCreateBucket(ctx, mgr, args)
	case "update-bucket":
		return cmdUpdateBucket(ctx, mgr, args)
	case "delete-bucket":
		return cmdDeleteBucket(ctx, mgr, args)
	case "bucket-info":
		return cmdBucketInfo(ctx, mgr, args)
	case "ls-buckets":
		return cmdListBuckets(ctx, mgr)
	case "get":
		return cmdGet(ctx, mgr, args)
	case "put":
		return cmdPut(ctx, mgr, args)
	case "create":
		return cmdCreate(ctx, mgr, args)
	case "delete":
		return cmdDelete(ctx, mgr, args)
	case "purge":
		return cmdPurge(ctx, mgr, args)
	case "keys":
		return cmdKeys(ctx, mgr, args)
	case "history":
		return cmdHistory(ctx, mgr, args)
	case "watch":
		return cmdWatch(ctx, mgr, args)
	case "purge-deletes":
		return cmdPurgeDeletes(ctx, mgr, args)
	default:
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
}

func cmdCreateBucket(ctx context.Context, mgr *kv.Manager, args []string) error {
	fs := flag.NewFlagSet("create-bucket", flag.ExitOnError)
	history := fs.Uint("history", 1, "Number of revisions to retain per key")
	desc := fs.String("description", "", "Bucket description")
	ttl := fs.Duration("ttl", 0, "Per-key TTL (0 disables expiry)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bucket, err := requireArg(fs, "bucket")
	if err != nil {
		return err
	}

	status, err := mgr.CreateBucket(ctx, kv.Config{
		Bucket:      bucket,
		Description: *desc,
		MaxHistory:  uint8(*history),
		TTL:         *ttl,
	})
	if err != nil {
		return err
	}

	printStatus(status)

	return nil
}

func cmdUpdateBucket(ctx context.Context, mgr *kv.Manager, args []string) error {
	fs := flag.NewFlagSet("update-bucket", flag.ExitOnError)
	history := fs.Uint("history", 1, "Number of revisions to retain per key")
	desc := fs.String("description", "", "Bucket description")
	ttl := fs.Duration("ttl", 0, "Per-key TTL (0 disables expiry)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bucket, err := requireArg(fs, "bucket")
	if err != nil {
		return err
	}

	status, err := mgr.UpdateBucket(ctx, kv.Config{
		Bucket:      bucket,
		Description: *desc,
		MaxHistory:  uint8(*history),
		TTL:         *ttl,
	})
	if err != nil {
		return err
	}

	printStatus(status)

	return nil
}

func cmdDeleteBucket(ctx context.Context, mgr *kv.Manager, args []string) error {
	bucket, err := positionalArg(args, 0, "bucket")
	if err != nil {
		return err
	}

	return mgr.DeleteBucket(ctx, bucket)
}

func cmdBucketInfo(ctx context.Context, mgr *kv.Manager, args []string) error {
	bucket, err := positionalArg(args, 0, "bucket")
	if err != nil {
		return err
	}

	status, err := mgr.BucketInfo(ctx, bucket)
	if err != nil {
		return err
	}

	printStatus(status)

	return nil
}

func cmdListBuckets(ctx context.Context, mgr *kv.Manager) error {
	buckets, err := mgr.ListBuckets(ctx)
	if err != nil {
		return err
	}

	for _, b := range buckets {
		fmt.Println(b)
	}

	return nil
}

func cmdGet(ctx context.Context, mgr *kv.Manager, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: get <bucket> <key> [revision]")
	}

	store, err := mgr.KeyValue(ctx, args[0])
	if err != nil {
		return err
	}

	var entry *kv.Entry
	if len(args) >= 3 {
		rev, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parse revision: %w", err)
		}

		entry, err = store.GetRevision(ctx, args[1], rev)
		if err != nil {
			return err
		}
	} else {
		entry, err = store.Get(ctx, args[1])
		if err != nil {
			return err
		}
	}

	printEntry(entry)

	return nil
}

func cmdPut(ctx context.Context, mgr *kv.Manager, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: put <bucket> <key> <value>")
	}

	store, err := mgr.KeyValue(ctx, args[0])
	if err != nil {
		return err
	}

	rev, err := store.Put(ctx, args[1], []byte(args[2]))
	if err != nil {
		return err
	}

	fmt.Println(rev)

	return nil
}

func cmdCreate(ctx context.Context, mgr *kv.Manager, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: create <bucket> <key> <value>")
	}

	store, err := mgr.KeyValue(ctx, args[0])
	if err != nil {
		return err
	}

	rev, err := store.Create(ctx, args[1], []byte(args[2]))
	if err != nil {
		return err
	}

	fmt.Println(rev)

	return nil
}

func cmdDelete(ctx context.Context, mgr *kv.Manager, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: delete <bucket> <key>")
	}

	store, err := mgr.KeyValue(ctx, args[0])
	if err != nil {
		return err
	}

	return store.Delete(ctx, args[1])
}

func cmdPurge(ctx context.Context, mgr *kv.Manager, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: purge <bucket> <key>")
	}

	store, err := mgr.KeyValue(ctx, args[0])
	if err != nil {
		return err
	}

	return store.Purge(ctx, args[1])
}

func cmdKeys(ctx context.Context, mgr *kv.Manager, args []string) error {
	bucket, err := positionalArg(args, 0, "bucket")
	if err != nil {
		return err
	}

	store, err := mgr.KeyValue(ctx, bucket)
	if err != nil {
		return err
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}

	for _, k := range keys {
		fmt.Println(k)
	}

	return nil
}

func cmdHistory(ctx context.Context, mgr *kv.Manager, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: history <bucket> <key>")
	}

	store, err := mgr.KeyValue(ctx, args[0])
	if err != nil {
		return err
	}

	entries, err := store.History(ctx, args[1])
	if err != nil {
		return err
	}

	for _, e := range entries {
		printEntry(e)
	}

	return nil
}

func cmdWatch(ctx context.Context, mgr *kv.Manager, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	updatesOnly := fs.Bool("updates-only", false, "Skip the initial snapshot, deliver only live changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) < 1 {
		return errors.New("usage: watch [-updates-only] <bucket> [key-pattern]")
	}

	store, err := mgr.KeyValue(ctx, rest[0])
	if err != nil {
		return err
	}

	var watchOpts []kv.WatchOption
	if *updatesOnly {
		watchOpts = append(watchOpts, kv.UpdatesOnly())
	}

	obs := &printingObserver{}

	var w *kv.Watcher
	if len(rest) > 1 {
		w, err = store.Watch(ctx, rest[1], obs, watchOpts...)
	} else {
		w, err = store.WatchAll(ctx, obs, watchOpts...)
	}
	if err != nil {
		return err
	}
	defer func() { _ = w.Unsubscribe() }()

	<-ctx.Done()

	return nil
}

func cmdPurgeDeletes(ctx context.Context, mgr *kv.Manager, args []string) error {
	fs := flag.NewFlagSet("purge-deletes", flag.ExitOnError)
	olderThan := fs.Duration("older-than", 30*time.Minute, "Only purge tombstones older than this (0 means unconditional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bucket, err := requireArg(fs, "bucket")
	if err != nil {
		return err
	}

	store, err := mgr.KeyValue(ctx, bucket)
	if err != nil {
		return err
	}

	threshold := *olderThan
	if threshold == 0 {
		threshold = -1
	}

	return store.PurgeDeletes(ctx, kv.WithPurgeDeletesThreshold(threshold))
}

type printingObserver struct{}

func (o *printingObserver) OnEntry(e *kv.Entry) { printEntry(e) }

func (o *printingObserver) OnEndOfInitialData() { fmt.Println("--- end of initial data ---") }

func printEntry(e *kv.Entry) {
	fmt.Printf("%s\t%d\t%s\t%s\n", e.Key, e.Revision, e.Operation, e.Value)
}

func printStatus(s *kv.Status) {
	fmt.Printf("bucket=%s values=%d history=%d bytes=%d backend=%s\n",
		s.Bucket, s.Values, s.History, s.Bytes, s.Backend)
}

func requireArg(fs *flag.FlagSet, name string) (string, error) {
	if fs.NArg() < 1 {
		return "", fmt.Errorf("missing required %s argument", name)
	}

	return fs.Arg(0), nil
}

func positionalArg(args []string, idx int, name string) (string, error) {
	if idx >= len(args) {
		return "", fmt.Errorf("missing required %s argument", name)
	}

	return args[idx], nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func fatalf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, "kvctl: "+strings.TrimSpace(fmt.Sprintf(format, args...)))
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `kvctl: inspect and mutate NATS JetStream KV buckets

Usage:
  kvctl [flags] <subcommand> [args]

Subcommands:
  create-bucket [-history=N] [-description=D] [-ttl=D] <bucket>
  update-bucket [-history=N] [-description=D] [-ttl=D] <bucket>
  delete-bucket <bucket>
  bucket-info <bucket>
  ls-buckets
  get <bucket> <key> [revision]
  put <bucket> <key> <value>
  create <bucket> <key> <value>
  delete <bucket> <key>
  purge <bucket> <key>
  keys <bucket>
  history <bucket> <key>
  watch [-updates-only] <bucket> [key-pattern]
  purge-deletes [-older-than=D] <bucket>

Flags:`)
	flag.PrintDefaults()
}
