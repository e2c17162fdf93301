package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/trustdble/tablekv/internal/client"
	"github.com/trustdble/tablekv/internal/table"
)

const usage = `usage: tablekvctl [flags] <command> [args]

commands:
  create <name>                    print the table id for name
  put <table> <key> <value> [...]  write key/value pairs
  get <table> <key>                print one value
  getall <table>                   print every row
  delete <table> <key> [...]       delete keys, stopping at the first missing one
  drop <table>                     delete every row
  exists <table> <key>             report whether key is present
  digest <table>                   print the table digest

Keys and values are taken as text and sent as bytes.

flags:
`

func main() {
	addr := flag.String("addr", "127.0.0.1:9443", "Node address")
	ledger := flag.String("ledger", "00000000", "Ledger id, 8 hex characters")
	serverKey := flag.String("server-key", "", "Hex Ed25519 key to pin the node to")
	timeout := flag.Duration("timeout", 10*time.Second, "Overall timeout")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := client.Config{Addr: *addr, LedgerID: *ledger}
	if *serverKey != "" {
		key, err := hex.DecodeString(*serverKey)
		if err != nil {
			exit(fmt.Errorf("invalid server key: %w", err))
		}
		cfg.ServerKey = key
	}

	c, err := client.Dial(ctx, cfg)
	if err != nil {
		exit(err)
	}
	defer c.Close() //nolint:errcheck

	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		exit(err)
	}
}

var errUsage = errors.New("wrong arguments, see -h")

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "create":
		if len(args) != 1 {
			return errUsage
		}
		id, err := c.CreateTable(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(id)
	case "put":
		if len(args) < 3 || len(args)%2 != 1 {
			return errUsage
		}
		rows := make(map[string][]byte)
		for i := 1; i < len(args); i += 2 {
			rows[args[i]] = []byte(args[i+1])
		}
		return c.Put(ctx, args[0], rows)
	case "get":
		if len(args) != 2 {
			return errUsage
		}
		v, err := c.Get(ctx, args[0], []byte(args[1]))
		if err != nil {
			return err
		}
		fmt.Println(string(v))
	case "getall":
		if len(args) != 1 {
			return errUsage
		}
		rows, err := c.GetAll(ctx, args[0])
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(rows))
		for k := range rows {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Printf("%s\t%s\n", k, rows[k])
		}
	case "delete":
		if len(args) < 2 {
			return errUsage
		}
		keys := make([][]byte, 0, len(args)-1)
		for _, k := range args[1:] {
			keys = append(keys, []byte(k))
		}
		return c.Delete(ctx, args[0], keys)
	case "drop":
		if len(args) != 1 {
			return errUsage
		}
		return c.DropTable(ctx, args[0])
	case "exists":
		if len(args) != 2 {
			return errUsage
		}
		ok, err := c.KeyExists(ctx, table.CompositeKey(args[0], hex.EncodeToString([]byte(args[1]))))
		if err != nil {
			return err
		}
		fmt.Println(ok)
	case "digest":
		if len(args) != 1 {
			return errUsage
		}
		d, err := c.Digest(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(d)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
	return nil
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(err.Error()))
	os.Exit(1)
}
