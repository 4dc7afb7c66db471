// Command xmlpull-cat reads an XML document and writes it back out
// through the pull parser and the dual emitter, demonstrating a
// read -> write passthrough.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nobie-org/pullxml/internal/bytesource"
	"github.com/nobie-org/pullxml/pkg/xmlwrite"
	"github.com/nobie-org/pullxml/pullxml"
)

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(os.Args[1:], os.Stdout, os.Stderr)
}

func runWithArgs(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("xmlpull-cat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	ignoreComments := fs.Bool("ignore-comments", false, "drop Comment events")
	trim := fs.Bool("trim-whitespace", false, "strip leading/trailing whitespace from text events")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: %s [flags] <file.xml>\n\n", os.Args[0])
		_, _ = fmt.Fprintln(stderr, "Parses file.xml with the streaming pull parser and re-emits it.")
		_, _ = fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	remaining := fs.Args()
	if len(remaining) != 1 {
		_, _ = fmt.Fprintln(stderr, "error: exactly one XML file argument is required")
		fs.Usage()
		return 2
	}

	f, err := os.Open(remaining[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error opening file: %v\n", err)
		return 1
	}
	defer f.Close()

	cfg := pullxml.JoinOptions(
		pullxml.Default(),
		pullxml.IgnoreComments(*ignoreComments),
		pullxml.TrimWhitespace(*trim),
	)
	src := bytesource.NewBlockingSource(f, bytesource.DefaultBufferSize)
	parser := pullxml.NewParser(src, cfg, nil)

	w := xmlwrite.New(stdout)
	for {
		ev, err := parser.NextEvent()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "parse error: %v\n", err)
			return 1
		}
		if err := w.WriteEvent(ev); err != nil {
			_, _ = fmt.Fprintf(stderr, "write error: %v\n", err)
			return 1
		}
		if ev.Kind == pullxml.KindEndDocument {
			break
		}
	}
	if err := w.Flush(); err != nil {
		_, _ = fmt.Fprintf(stderr, "flush error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout)
	return 0
}
