// dikkidb is an interactive shell for an embedded dikkidb store.
//
// Usage:
//
//	dikkidb <data-dir>   Open (or create) a store at data-dir
//
// Commands (in REPL):
//
//	put <coll> <id> <json>   Write a document
//	get <coll> <id>          Read a document
//	del <coll> <id>          Delete a document
//	find <coll> <field> <value>   Equality findBy over a collection
//	iterate <coll>           List every live document in a collection
//	begin / end              Batch a run of puts/deletes
//	stats                    Show data directory size
//	help                     Show this help
//	exit / quit / q          Exit
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"

	"github.com/namankumar80510/dikkidb/internal/config"
	"github.com/namankumar80510/dikkidb/internal/dikkidb"
	"github.com/namankumar80510/dikkidb/internal/docmodel"
	"github.com/namankumar80510/dikkidb/internal/logger"
	"github.com/namankumar80510/dikkidb/pkg/collection"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		return fmt.Errorf("missing data directory")
	}

	log := logger.Default()
	if *verbose {
		log.SetLevel(logger.LevelDebug)
	}

	cfg := config.DefaultConfig()
	cfg.DataDir = flag.Arg(0)

	db, err := dikkidb.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.DataDir, err)
	}
	defer db.Close()

	catalog, err := collection.OpenCatalog(filepath.Join(cfg.DataDir, "catalog.db"))
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer catalog.Close()

	r := &repl{
		dataDir:  cfg.DataDir,
		db:       db,
		registry: collection.NewRegistry(db, catalog),
		handles:  make(map[string]*collection.Collection),
	}
	return r.run()
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: dikkidb <data-dir>")
}

// repl is the interactive command loop.
type repl struct {
	dataDir  string
	db       *dikkidb.Database
	registry *collection.Registry
	handles  map[string]*collection.Collection
	line     *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dikkidb_history")
}

func (r *repl) run() error {
	r.line = liner.NewLiner()
	defer r.line.Close()

	r.line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("dikkidb - embedded document store shell (%s)\n", r.dataDir)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.line.Prompt("dikkidb> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.line.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "put":
			r.cmdPut(args)
		case "get":
			r.cmdGet(args)
		case "del", "delete":
			r.cmdDelete(args)
		case "find":
			r.cmdFind(args)
		case "iterate", "ls", "list":
			r.cmdIterate(args)
		case "begin":
			r.cmdBegin()
		case "end":
			r.cmdEnd()
		case "stats":
			r.cmdStats()
		default:
			fmt.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *repl) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
}

func (r *repl) printHelp() {
	fmt.Print(`commands:
  put <coll> <id> <json>        write a document
  get <coll> <id>                read a document
  del <coll> <id>                delete a document
  find <coll> <field> <value>    equality findBy over a collection
  iterate <coll>                 list every live document in a collection
  begin / end                    batch a run of puts/deletes
  stats                          show data directory size
  help                           show this help
  exit / quit / q                exit
`)
}

func (r *repl) collection(name string) (*collection.Collection, error) {
	if c, ok := r.handles[name]; ok {
		return c, nil
	}
	c, err := r.registry.Collection(name)
	if err != nil {
		return nil, err
	}
	r.handles[name] = c
	return c, nil
}

func (r *repl) cmdPut(args []string) {
	if len(args) < 3 {
		fmt.Println("usage: put <coll> <id> <json>")
		return
	}
	c, err := r.collection(args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	raw := strings.Join(args[2:], " ")
	doc, err := docmodel.Decode([]byte(raw))
	if err != nil {
		fmt.Println("invalid json:", err)
		return
	}
	if err := c.Put(args[1], doc); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func (r *repl) cmdGet(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: get <coll> <id>")
		return
	}
	c, err := r.collection(args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	doc, ok, err := c.Get(args[1])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("(not found)")
		return
	}
	printJSON(doc)
}

func (r *repl) cmdDelete(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: del <coll> <id>")
		return
	}
	c, err := r.collection(args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if err := c.Delete(args[1]); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func (r *repl) cmdFind(args []string) {
	if len(args) < 3 {
		fmt.Println("usage: find <coll> <field> <value>")
		return
	}
	c, err := r.collection(args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	matches, err := c.FindBy(args[1], strings.Join(args[2:], " "))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, m := range matches {
		fmt.Printf("%s: ", m.ID)
		printJSON(m.Document)
	}
	fmt.Printf("%d match(es)\n", len(matches))
}

func (r *repl) cmdIterate(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: iterate <coll>")
		return
	}
	c, err := r.collection(args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	matches, err := c.All()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, m := range matches {
		fmt.Printf("%s: ", m.ID)
		printJSON(m.Document)
	}
	fmt.Printf("%d document(s)\n", len(matches))
}

func (r *repl) cmdBegin() {
	if err := r.db.BeginBatch(); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("batch started; puts/deletes across all collections hold off autoCommit until 'end'")
}

func (r *repl) cmdEnd() {
	if err := r.db.EndBatch(); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func (r *repl) cmdStats() {
	var total int64
	filepath.WalkDir(r.dataDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err == nil {
			total += info.Size()
		}
		return nil
	})
	fmt.Printf("data directory size: %s\n", humanize.Bytes(uint64(total)))

	walErrs, storageErrs := r.db.IOErrorCounts()
	fmt.Printf("I/O errors observed: wal=%d storage=%d\n", walErrs, storageErrs)
}

func printJSON(doc docmodel.Document) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Println("(undecodable document)")
		return
	}
	fmt.Println(string(raw))
}
