// inspect dumps the raw keyspace of a database directory. Read-only ops
// tool for debugging key layout and stored JSON.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

func main() {
	var (
		path   string
		prefix string
		limit  int
		keys   bool
	)
	flag.StringVar(&path, "db", "", "database directory to open (read-only)")
	flag.StringVar(&prefix, "prefix", "", "only dump keys with this prefix (e.g. thread:, notify:)")
	flag.IntVar(&limit, "limit", 0, "stop after this many keys (0 = all)")
	flag.BoolVar(&keys, "keys", false, "print keys only, no values")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer db.Close()

	opts := &pebble.IterOptions{}
	if prefix != "" {
		opts.LowerBound = []byte(prefix)
		opts.UpperBound = append([]byte(prefix), 0xff)
	}
	iter, err := db.NewIter(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterator: %v\n", err)
		os.Exit(1)
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if keys {
			fmt.Println(string(iter.Key()))
		} else {
			fmt.Printf("%s\t%s\n", iter.Key(), iter.Value())
		}
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", n)
}
