// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command pr47c is the demo front-end for the AL31F execution core: it can
// tokenize a source file with the PROBE lexer, or run one of a handful of
// hand-assembled CompiledProgram demos through the executor (spec.md §8's
// scenarios) — there is no source-to-bytecode compiler backend in scope
// here, so "running a .probe file" stops at lexing until one exists.
//
// Usage:
//
//	pr47c tokens <source.probe>
//	pr47c run <demo-name>
//	pr47c -version
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/probechain/pr47/lang/lexer"
)

const version = "0.1.0"

func main() {
	ver := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *ver {
		fmt.Printf("pr47c %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: pr47c tokens <source.probe> | pr47c run <demo-name>")
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "tokens":
		emitTokens(flag.Arg(1))
	case "run":
		if err := runDemo(flag.Arg(1)); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func emitTokens(filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	l := lexer.New(filename, string(source))
	tokens := l.Tokenize()
	for _, tok := range tokens {
		fmt.Printf("%s\t%s\t%q\n", tok.Pos, tok.Type, tok.Literal)
	}
}

func runDemo(name string) error {
	thread, funcID, args, err := loadDemo(name)
	if err != nil {
		return err
	}
	results, err := thread.RunFunction(funcID, args)
	if err != nil {
		return err
	}
	fmt.Println("results:", results)
	fmt.Println(thread.Stats())
	return nil
}
