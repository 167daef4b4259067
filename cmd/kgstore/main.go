package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-kgstore/kg/logindex"
	"github.com/wbrown/janus-kgstore/kg/rpc"
	"github.com/wbrown/janus-kgstore/kg/service"
)

func main() {
	var socketPath string
	var interactive bool
	var help bool
	var queryStr string
	var insertPath string
	var format string
	var wipe bool
	var wait time.Duration
	var status bool
	var at uint64
	var atLeast uint64
	var recent bool

	flag.StringVar(&socketPath, "socket", "", "daemon socket path")
	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&help, "h", false, "show help")
	flag.StringVar(&queryStr, "query", "", "run a single query and exit")
	flag.StringVar(&insertPath, "insert", "", "insert facts from file ('-' for stdin)")
	flag.StringVar(&format, "format", "tsv", "facts payload format")
	flag.BoolVar(&wipe, "wipe", false, "destroy the dataset")
	flag.DurationVar(&wait, "wait", 0, "grace delay before a wipe takes effect")
	flag.BoolVar(&status, "status", false, "show store status and exit")
	flag.Uint64Var(&at, "at", 0, "read exactly at this log index")
	flag.Uint64Var(&atLeast, "at-least", 0, "read at this log index or newer")
	flag.BoolVar(&recent, "recent", false, "read at a recently observed index (may be stale)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Client for the kgstored fact-store daemon.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i                                # Interactive mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -insert facts.tsv                 # Insert a TSV facts file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -query 'SELECT ?x WHERE ?x rdf:type <Person>'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -at-least 42 -query '...'         # Read-your-writes at index 42\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -wipe -wait 5s                    # Wipe after a 5s grace delay\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	if socketPath == "" {
		socketPath = defaultSocketPath()
	}

	client, err := rpc.Dial(socketPath)
	if err != nil {
		log.Fatalf("Failed to connect to daemon at %s: %v", socketPath, err)
	}
	defer client.Close()

	spec, err := indexSpec(at, atLeast, recent)
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case insertPath != "":
		runInsert(client, insertPath, format)
	case queryStr != "":
		runQuery(client, spec, queryStr)
	case wipe:
		runWipe(client, wait)
	case status:
		runStatus(client)
	case interactive:
		runInteractive(client, spec)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "kgstore", "kgstore.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to find home directory: %v", err)
	}
	return filepath.Join(home, ".local", "state", "kgstore", "kgstore.sock")
}

// indexSpec builds the read-consistency selector from the flags. At most
// one of -at, -at-least and -recent may be given; the default is latest.
func indexSpec(at, atLeast uint64, recent bool) (logindex.Spec, error) {
	given := 0
	if at != 0 {
		given++
	}
	if atLeast != 0 {
		given++
	}
	if recent {
		given++
	}
	if given > 1 {
		return logindex.Spec{}, fmt.Errorf("pick at most one of -at, -at-least, -recent")
	}
	switch {
	case at != 0:
		return logindex.ExactAt(at), nil
	case atLeast != 0:
		return logindex.AtLeastAt(atLeast), nil
	case recent:
		return logindex.RecentIndex(), nil
	default:
		return logindex.LatestIndex(), nil
	}
}

func runInsert(client *rpc.Client, path, format string) {
	var payload []byte
	var err error
	if path == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(path)
	}
	if err != nil {
		log.Fatalf("Failed to read facts: %v", err)
	}

	res, err := client.Insert(service.InsertRequest{Format: format, Facts: string(payload)})
	if err != nil {
		log.Fatalf("Insert failed: %v", err)
	}
	printInsertResult(res)
	if res.Status != service.StatusOK {
		os.Exit(1)
	}
}

func printInsertResult(res service.InsertResult) {
	if res.Status == service.StatusOK {
		fmt.Printf("%s committed at index %d\n", color.GreenString("OK:"), res.Index)
		return
	}
	fmt.Printf("%s %s\n", color.RedString(res.Status.String()+":"), res.Error)
}

func runQuery(client *rpc.Client, spec logindex.Spec, queryStr string) {
	if err := streamQuery(client, spec, queryStr, os.Stdout); err != nil {
		log.Fatalf("Query failed: %v", err)
	}
}

// streamQuery runs one query and renders every chunk as it arrives, so a
// large answer starts printing before the stream completes.
func streamQuery(client *rpc.Client, spec logindex.Spec, queryStr string, w io.Writer) error {
	first := true
	var total int
	var index uint64

	err := client.Query(service.QueryRequest{
		Index: spec,
		Query: queryStr,
	}, func(chunk service.QueryResult) error {
		if first {
			first = false
			total = chunk.TotalResultSize
			index = chunk.Index
		}
		renderChunk(w, chunk)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n_%d rows (index %d)_\n", total, index)
	return nil
}

// renderChunk prints one chunk as a markdown table.
func renderChunk(w io.Writer, chunk service.QueryResult) {
	alignment := make([]tw.Align, len(chunk.Columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(chunk.Columns)

	for r := 0; r < chunk.NumRows(); r++ {
		row := make([]string, len(chunk.Columns))
		for c := range chunk.Columns {
			row[c] = chunk.Values[c][r].String()
		}
		table.Append(row)
	}
	table.Render()
}

func runWipe(client *rpc.Client, wait time.Duration) {
	res, err := client.Wipe(service.WipeRequest{WaitFor: wait})
	if err != nil {
		log.Fatalf("Wipe failed: %v", err)
	}
	fmt.Printf("%s dataset through index %d destroyed, store now at index %d\n",
		color.YellowString("Wiped:"), res.Index, res.AtIndex)
}

func runStatus(client *rpc.Client) {
	st, err := client.Status()
	if err != nil {
		log.Fatalf("Status failed: %v", err)
	}
	fmt.Printf("facts:      %d\n", st.Facts)
	fmt.Printf("tail:       %d\n", st.Tail)
	fmt.Printf("wipe floor: %d\n", st.WipeFloor)
}

func runInteractive(client *rpc.Client, spec logindex.Spec) {
	fmt.Println("=== KGStore Interactive Mode ===")
	fmt.Println("Commands:")
	fmt.Println("  .help      - Show help")
	fmt.Println("  .exit      - Exit")
	fmt.Println("  .insert    - Paste TSV facts, end with a line containing only '.'")
	fmt.Println("  .status    - Show store status")
	fmt.Println("  SELECT ... - Run a query")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	// After an insert, read our own writes.
	readSpec := spec

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue

		case line == ".exit":
			return

		case line == ".help":
			fmt.Println("Enter SELECT queries, or .insert to add facts.")

		case line == ".status":
			runStatus(client)

		case line == ".insert":
			var payload strings.Builder
			fmt.Println("Paste TSV facts, finish with '.' on its own line:")
			for scanner.Scan() {
				text := scanner.Text()
				if strings.TrimSpace(text) == "." {
					break
				}
				payload.WriteString(text)
				payload.WriteString("\n")
			}
			res, err := client.Insert(service.InsertRequest{Format: "tsv", Facts: payload.String()})
			if err != nil {
				fmt.Printf("Insert failed: %v\n", err)
				continue
			}
			printInsertResult(res)
			if res.Status == service.StatusOK {
				readSpec = logindex.AtLeastAt(res.Index)
			}

		case strings.HasPrefix(strings.ToUpper(line), "SELECT"):
			if err := streamQuery(client, readSpec, line, os.Stdout); err != nil {
				fmt.Printf("Query failed: %v\n", err)
			}

		default:
			fmt.Println("Unknown command. Use .help for help.")
		}
	}
}
