// ticktrace inspects and edits the durable trace configuration, route cache
// and report queue of a ticktrace data directory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/dye"
	"github.com/zond/ticktrace/server"
	"golang.org/x/term"
)

func main() {
	defaults := server.DefaultConfig()
	dir := flag.String("dir", defaults.Dir, "Where the database and trace log live")
	logFile := flag.String("log", "", "Trace log file, defaults to trace.log in -dir")
	graph := flag.String("graph", "", "JSON file mapping each known zone to its exits, used by 'routes get'")
	html := flag.Bool("html", false, "Emit HTML styled output even on a terminal")
	verbose := flag.Bool("v", false, "Print stack traces for errors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for _, cmd := range topCommands {
			fmt.Fprintf(os.Stderr, "  %s\n", cmd.usage)
		}
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := defaults
	c.Dir = *dir
	c.LogFile = *logFile
	if *html || !term.IsTerminal(int(os.Stdout.Fd())) {
		c.Renderer = dye.HTML{}
	} else {
		c.Renderer = dye.Terminal{}
	}

	var out io.Writer = os.Stdout
	var in lineReader = &scanner{bufio.NewScanner(os.Stdin)}
	var restore func()
	if args[0] == "console" && term.IsTerminal(int(os.Stdin.Fd())) {
		state, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			log.Fatal(err)
		}
		restore = func() { term.Restore(int(os.Stdin.Fd()), state) }
		t := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, "> ")
		out, in = t, t
	}
	c.Stdout = out

	s, err := server.New(ctx, c)
	if err != nil {
		if restore != nil {
			restore()
		}
		log.Fatal(err)
	}
	a := &app{
		server: s,
		out:    out,
		in:     in,
		graph:  *graph,
	}
	err = a.run(ctx, args)
	if restore != nil {
		restore()
	}
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if *verbose {
			fmt.Fprint(os.Stderr, ticktrace.StackTrace(err))
		}
		os.Exit(1)
	}
}
