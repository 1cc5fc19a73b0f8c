package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/CogniformAI/instructor-stream-go/engine"
	"github.com/CogniformAI/instructor-stream-go/schema"
)

// Article is a stand-in for whatever struct a real caller would pass to
// schema.FromStruct; the demo just needs something with a couple of
// fields to show partial fields filling in as JSON streams past.
type Article struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	switch os.Args[1] {
	case "stream":
		runStream(os.Stdin)
	default:
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Usage: go run . <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  stream   Read a JSON object, rune by rune, from stdin and print each")
	fmt.Println("           snapshot as the engine assembles it.")
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println(`  echo '{"title":"Hi","summary":"A test","tags":["a","b"]}' | go run . stream`)
}

func runStream(r io.Reader) {
	sch, err := schema.FromStruct(Article{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error building schema:", err)
		os.Exit(1)
	}

	pipeline := engine.NewPipeline(engine.Config{ValidationMode: "on_complete"}, sch)
	ctx := context.Background()

	fragments := make(chan string)
	go func() {
		defer close(fragments)
		scanner := bufio.NewScanner(r)
		scanner.Split(bufio.ScanRunes)
		for scanner.Scan() {
			fragments <- scanner.Text()
			// Simulate token-by-token arrival so the incremental
			// assembly is visible rather than instantaneous.
			time.Sleep(4 * time.Millisecond)
		}
	}()

	for chunk := range pipeline.Run(ctx, fragments) {
		data, err := json.Marshal(chunk.Snapshot)
		if err != nil {
			continue
		}
		fmt.Printf("\r\033[K%s", data)
	}
	fmt.Println()

	if err := pipeline.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "stream error:", err)
		os.Exit(1)
	}
}
