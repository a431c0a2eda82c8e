package main

import (
	"bytes"
	"cmp"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	log "github.com/sirupsen/logrus"

	"vbtree/pkg/codec"
	"vbtree/pkg/common"
	"vbtree/pkg/config"
	"vbtree/pkg/cursor"
	"vbtree/pkg/sql"
	"vbtree/pkg/store"
)

const Prompt = "vbtree> "

var completer = readline.NewPrefixCompleter(
	readline.PcItem("put"),
	readline.PcItem("get"),
	readline.PcItem("del"),
	readline.PcItem("scan"),
	readline.PcItem("select"),
	readline.PcItem("sort"),
	readline.PcItem("stats"),
	readline.PcItem("check"),
	readline.PcItem("reset"),
	readline.PcItem("loglevel",
		readline.PcItem("debug"),
		readline.PcItem("info"),
		readline.PcItem("warn"),
	),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

func main() {
	configPath := flag.String("config", "", "path to vbtree.yaml")
	backend := flag.String("backend", "", "override storage backend (memory or sqlite)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	setLogLevel(cfg.System.LogLevel)

	l, err := readline.NewEx(&readline.Config{
		Prompt:       Prompt,
		HistoryFile:  os.TempDir() + "/vbtree-readline.tmp",
		AutoComplete: completer,
	})
	if err != nil {
		log.Fatalf("Failed to start readline: %v", err)
	}
	defer l.Close()
	log.SetOutput(l.Stderr())

	s, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open tree: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Errorf("Failed to close tree: %v", err)
		}
	}()

	out := l.Stdout()
	fmt.Fprintf(out, "vbtree CLI (backend: %s, capacity [%d, %d] bytes)\n",
		cfg.Storage.Backend, cfg.Tree.MinCapacity, cfg.Tree.MaxCapacity)
	fmt.Fprintln(out, "Type 'help' for commands.")

	for {
		line, err := l.Readline()
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "put", "set":
			handlePut(out, s, parts)
		case "get":
			handleGet(out, s, parts)
		case "del", "rm":
			handleDel(out, s, parts)
		case "scan":
			handleScan(out, s, parts)
		case "select":
			handleSelect(out, s, line)
		case "sort":
			handleSort(out, s, cfg.Sort, parts)
		case "stats":
			handleStats(out, s)
		case "check":
			handleCheck(out, s)
		case "reset":
			if err := s.Reset(); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			} else {
				fmt.Fprintln(out, "OK (tree emptied)")
			}
		case "loglevel":
			if len(parts) < 2 {
				fmt.Fprintln(out, "Usage: loglevel <debug|info|warn|error>")
				continue
			}
			setLogLevel(parts[1])
		case "help":
			printHelp(out)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintf(out, "Unknown command: '%s'. Type 'help'.\n", cmd)
		}
	}
}

func setLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		fmt.Println("Invalid log level:", level)
		return
	}
	log.SetLevel(lvl)
}

func parseKey(s string) (int64, bool) {
	k, err := strconv.ParseInt(s, 10, 64)
	return k, err == nil
}

func handlePut(out io.Writer, s *store.Store, parts []string) {
	if len(parts) < 3 {
		fmt.Fprintln(out, "Usage: put <key_int> <value_string>")
		return
	}
	key, ok := parseKey(parts[1])
	if !ok {
		fmt.Fprintln(out, "Error: Key must be an integer (e.g., 1001)")
		return
	}
	rec := common.Record{Key: common.KeyType(key), Value: []byte(strings.Join(parts[2:], " "))}

	start := time.Now()
	err := s.Tree.Insert(rec)
	duration := time.Since(start)

	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	} else {
		fmt.Fprintf(out, "OK (%v)\n", duration)
	}
}

func handleGet(out io.Writer, s *store.Store, parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(out, "Usage: get <key_int>")
		return
	}
	key, ok := parseKey(parts[1])
	if !ok {
		fmt.Fprintln(out, "Error: Key must be an integer")
		return
	}

	start := time.Now()
	rec, found, err := s.Tree.Get(key)
	duration := time.Since(start)

	switch {
	case err != nil:
		fmt.Fprintf(out, "Error: %v\n", err)
	case !found:
		fmt.Fprintf(out, "(not found) (%v)\n", duration)
	default:
		fmt.Fprintf(out, "\"%s\" (%v)\n", string(rec.Value), duration)
	}
}

func handleDel(out io.Writer, s *store.Store, parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(out, "Usage: del <key_int>")
		return
	}
	key, ok := parseKey(parts[1])
	if !ok {
		fmt.Fprintln(out, "Error: Key must be an integer")
		return
	}

	start := time.Now()
	_, err := s.Tree.RemoveKey(key)
	duration := time.Since(start)

	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	} else {
		fmt.Fprintf(out, "Deleted (%v)\n", duration)
	}
}

func handleScan(out io.Writer, s *store.Store, parts []string) {
	if len(parts) < 3 {
		fmt.Fprintln(out, "Usage: scan <start_key> <end_key>")
		return
	}
	startKey, ok1 := parseKey(parts[1])
	endKey, ok2 := parseKey(parts[2])
	if !ok1 || !ok2 {
		fmt.Fprintln(out, "Error: Keys must be integers")
		return
	}
	r, err := s.Tree.Domain().Closed(startKey, endKey)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	start := time.Now()
	recs, err := cursor.Collect(s.Tree.RangeScan(r))
	duration := time.Since(start)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	printRecords(out, recs)
	fmt.Fprintf(out, "(%d rows, %v)\n", len(recs), duration)
}

func handleSelect(out io.Writer, s *store.Store, line string) {
	stmt, err := sql.Parse(line)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	start := time.Now()
	res, err := s.Select(stmt)
	duration := time.Since(start)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	if stmt.Aggregate != "" {
		fmt.Fprintf(out, "%s(id) = %s\n", strings.ToUpper(stmt.Aggregate), res.Value)
	} else {
		printRecords(out, res.Rows)
		fmt.Fprintf(out, "(%d rows)\n", len(res.Rows))
	}
	fmt.Fprintf(out, "index nodes: %d, leaves: %d, %v\n",
		res.Counters.IndexNodesVisited, res.Counters.LeavesTouched, duration)
}

// handleSort orders the stored records by payload with the external sorter.
func handleSort(out io.Writer, s *store.Store, sc config.SortConfig, parts []string) {
	limit := 10
	if len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 {
			fmt.Fprintln(out, "Usage: sort [limit]")
			return
		}
		limit = n
	}

	byValue := func(a, b common.Record) int {
		if c := bytes.Compare(a.Value, b.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	}
	sorted := cursor.MergeSorter[common.Record](s.Tree.Query(s.Tree.Domain().All()), byValue, codec.Record{},
		cursor.SortOptions{MemoryBudget: sc.MemoryBudget, FanIn: sc.FanIn, TempDir: sc.TempDir})

	start := time.Now()
	recs, err := cursor.Collect(cursor.Take(sorted, limit))
	duration := time.Since(start)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	printRecords(out, recs)
	fmt.Fprintf(out, "(%d rows, %v)\n", len(recs), duration)
}

func handleStats(out io.Writer, s *store.Store) {
	st := s.Tree.Stats()
	fmt.Fprintf(out, "values: %d, height: %d\n", st.Values, st.Height)
	fmt.Fprintf(out, "splits: %d (root %d), merges: %d, redistributions: %d, postponed: %d, root collapses: %d\n",
		st.Splits, st.RootSplits, st.Merges, st.Redistributions, st.Postponed, st.RootCollapses)

	snap := s.ContainerStats().Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-9s %v\n", name+":", snap[name])
	}
}

func handleCheck(out io.Writer, s *store.Store) {
	start := time.Now()
	if err := s.Tree.Check(); err != nil {
		fmt.Fprintf(out, "Invalid tree: %v\n", err)
		return
	}
	fmt.Fprintf(out, "OK (%v)\n", time.Since(start))
}

func printRecords(out io.Writer, recs []common.Record) {
	for _, rec := range recs {
		fmt.Fprintf(out, "%d: \"%s\"\n", rec.Key, string(rec.Value))
	}
}

func printHelp(out io.Writer) {
	io.WriteString(out, `
Commands:
  put <key> <value>    Insert a record (duplicates allowed unless tree.unique)
  get <key>            Print the first record with key
  del <key>            Remove the first record with key
  scan <from> <to>     Print records with from <= key <= to along the leaf chain
  select ...           SELECT *|COUNT(*)|SUM(id)|MIN(id)|MAX(id)|AVG(id) FROM t
                       [WHERE id <op> <n> | WHERE id BETWEEN <a> AND <b>] [LIMIT <n>]
  sort [limit]         Print records ordered by value (external merge sort)
  stats                Tree and container counters
  check                Verify the tree invariants
  reset                Drop every record and start with an empty tree
  loglevel <level>     Set the log level
  exit                 Sync and quit
`[1:])
}
