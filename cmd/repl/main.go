// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main provides an interactive REPL for the RCU library catalog.
//
// This command-line tool allows users to interactively exercise the catalog
// through a simple command interface. It's useful for development, testing,
// and learning the API.
//
// # Usage
//
// Start the REPL:
//
//	go run cmd/repl/main.go [--deferred] [--capacity N] [--verbose]
//
// Available commands:
//
//	add <id> <name> <author>  - Add a book (starts borrowed)
//	get <id>                  - Show a book
//	borrow <id>               - Mark a book borrowed
//	return <id>               - Mark a book available
//	del <id>                  - Delete a book
//	list                      - List all live books
//	stats                     - Show metrics snapshot
//	quit, exit                - Exit the REPL
//
// Example session:
//
//	> add 0 "A journey of linux kernel" "Tom Hoter"
//	OK
//	> get 0
//	id=0 name="A journey of linux kernel" author="Tom Hoter" status=borrowed
//	> return 0
//	OK
//	> del 0
//	Deleted
//	> get 0
//	book with id 0 not found
//
// # Flags
//
//   - --deferred: retire superseded nodes through the background executor
//     instead of blocking on the grace period
//   - --capacity: bound the number of live nodes (0 = unlimited)
//   - --verbose: log at debug level
//   - --json: log as JSON instead of text
//
// # Limitations
//
//   - No persistence (in-memory only)
//   - Single-threaded interactive loop; for concurrency testing use the
//     library API directly
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kianostad/rculib"
)

var (
	deferred bool
	capacity int64
	verbose  bool
	jsonLogs bool
)

func init() {
	flag.BoolVar(&deferred, "deferred", false,
		`Retire superseded nodes asynchronously instead of blocking on the grace period`)
	flag.Int64Var(&capacity, "capacity", 0,
		`Bound on allocated-but-not-freed nodes; 0 means unlimited`)
	flag.BoolVar(&verbose, "verbose", false,
		`Log at debug level`)
	flag.BoolVar(&jsonLogs, "json", false,
		`Log as JSON instead of text`)
}

type repl struct {
	lib  *rculib.Library
	mode rculib.ReclaimMode
}

func (r *repl) run() {
	fmt.Println("RCU Library Catalog REPL")
	fmt.Println("Commands: add <id> <name> <author>, get <id>, borrow <id>, return <id>, del <id>, list, stats, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := splitArgs(line)
		cmd, args := parts[0], parts[1:]
		ctx := context.Background()

		switch cmd {
		case "add":
			if len(args) != 3 {
				fmt.Println("Usage: add <id> <name> <author>")
				continue
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Println("id must be an integer")
				continue
			}
			if err := r.lib.Add(ctx, id, args[1], args[2]); err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Println("OK")

		case "get":
			id, ok := parseID(args)
			if !ok {
				fmt.Println("Usage: get <id>")
				continue
			}
			book, err := r.lib.Get(ctx, id)
			if err != nil {
				fmt.Println(err)
				continue
			}
			printBook(book)

		case "borrow", "return":
			id, ok := parseID(args)
			if !ok {
				fmt.Printf("Usage: %s <id>\n", cmd)
				continue
			}
			status := rculib.Borrowed
			if cmd == "return" {
				status = rculib.Available
			}
			err := r.lib.Update(ctx, id, status, r.mode)
			switch {
			case errors.Is(err, rculib.ErrAlreadyInState):
				fmt.Printf("Already %s\n", status)
			case err != nil:
				fmt.Println(err)
			default:
				fmt.Println("OK")
			}

		case "del":
			id, ok := parseID(args)
			if !ok {
				fmt.Println("Usage: del <id>")
				continue
			}
			if err := r.lib.Delete(ctx, id, r.mode); err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Println("Deleted")

		case "list":
			n := 0
			r.lib.Ascend(ctx, func(b rculib.Book) bool {
				printBook(b)
				n++
				return true
			})
			fmt.Printf("%d book(s)\n", n)

		case "stats":
			snap := r.lib.Metrics(ctx)
			fmt.Printf("ops: add=%d update=%d delete=%d get=%d\n",
				snap.Operations.Add, snap.Operations.Update,
				snap.Operations.Delete, snap.Operations.Get)
			fmt.Printf("reclaim: sync_waits=%d deferred=%d freed=%d pending=%d\n",
				snap.Reclamation.SyncWaits, snap.Reclamation.DeferredRetires,
				snap.Reclamation.Freed, r.lib.Pending(ctx))
			fmt.Printf("latency: get_p50=%s update_p50=%s wait_p50=%s\n",
				snap.Latency.Get.P50, snap.Latency.Update.P50, snap.WaitLatency.P50)

		case "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}
	}
}

func parseID(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, false
	}
	return id, true
}

func printBook(b rculib.Book) {
	fmt.Printf("id=%d name=%q author=%q status=%s\n", b.ID, b.Name, b.Author, b.Status)
}

// splitArgs splits a command line into fields, honoring double quotes so
// names and authors may contain spaces.
func splitArgs(line string) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func main() {
	flag.Parse()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := rculib.NewTextLogger(level)
	if jsonLogs {
		logger = rculib.NewJSONLogger(level)
	}

	lib := rculib.New(
		rculib.WithLogger(logger.Logger),
		rculib.WithCapacity(capacity),
	)
	defer lib.Close(context.Background())

	mode := rculib.Wait
	if deferred {
		mode = rculib.Defer
	}

	r := &repl{lib: lib, mode: mode}
	r.run()
}
