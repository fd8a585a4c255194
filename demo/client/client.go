package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-distributed/kvpaxos"
	"github.com/go-distributed/kvpaxos/client"
	"github.com/go-distributed/kvpaxos/codec"
	"github.com/go-distributed/kvpaxos/messenger"
	"github.com/go-distributed/kvpaxos/transporter"
	"github.com/golang/glog"
)

var (
	nodes    = flag.String("nodes", "localhost:9000,localhost:9001,localhost:9002", "comma separated node addresses")
	identity = flag.String("identity", os.Getenv("USER"), "client identity, selects the namespace")
	timeout  = flag.Duration("timeout", 10*time.Second, "overall operation timeout")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] get [key] | put key version json-value\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	defer glog.Flush()

	config, err := kvpaxos.NewConfig(strings.Split(*nodes, ","))
	if err != nil {
		glog.Fatal(err)
	}
	tr := transporter.NewHTTPTransporter(config, *identity, nil)
	c := client.New(messenger.NewFromConfig(config, tr), codec.NewJSONCodec())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}
	switch {
	case args[0] == "get" && len(args) == 1:
		err = list(ctx, c)
	case args[0] == "get" && len(args) == 2:
		err = get(ctx, c, args[1])
	case args[0] == "put" && len(args) == 4:
		err = put(ctx, c, args[1], args[2], args[3])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}

func list(ctx context.Context, c *client.Client) error {
	keys, err := c.Keys(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Printf("%s\t%d\n", k, keys[k])
	}
	return nil
}

func get(ctx context.Context, c *client.Client, key string) error {
	rec, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return printRecord(rec)
}

func put(ctx context.Context, c *client.Client, key, version, value string) error {
	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("bad version %q: %v", version, err)
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return fmt.Errorf("value is not JSON: %v", err)
	}
	rec, err := c.Put(ctx, key, v, decoded)
	if err != nil {
		return err
	}
	return printRecord(rec)
}

func printRecord(rec *client.Record) error {
	data, err := json.Marshal(rec.Value)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%d\t%s\n", rec.Key, rec.Version, data)
	return nil
}
